package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"regbridge/src-server/cooldown"
	"regbridge/src-server/intake"

	"golang.org/x/time/rate"
)

const maxRegisterBodyBytes = 16 << 10

type Submitter interface {
	Submit(ctx context.Context, app intake.Application) (intake.Accepted, error)
}

func Register(muxer *http.ServeMux, submitter Submitter, limiter *rate.Limiter) {
	muxer.HandleFunc("POST /register", RateLimitMiddleware(limiter, func(w http.ResponseWriter, r *http.Request) {
		// parse request body
		var reqBody intake.Application
		r.Body = http.MaxBytesReader(w, r.Body, maxRegisterBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		reqBody.Normalize()
		if err := reqBody.Validate(); err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		// the cooldown is recorded after the post, a client hanging up must not cancel it
		_, err := submitter.Submit(context.WithoutCancel(r.Context()), reqBody)
		var rateLimited *intake.RateLimitedError
		switch {
		case err == nil:
			writeMessage(w, http.StatusOK, "Registration sent successfully!")
		case errors.As(err, &rateLimited):
			writeMessage(w, http.StatusTooManyRequests, fmt.Sprintf(
				"You have already registered. Please try again in %s.",
				cooldown.FormatRemaining(rateLimited.Remaining),
			))
		case errors.Is(err, intake.ErrChannelUnavailable):
			slog.Error("can't resolve review channel", "applicant", reqBody.DiscordID, "error", err)
			writeMessage(w, http.StatusInternalServerError, "Discord channel not found.")
		default:
			slog.Error("error processing registration", "applicant", reqBody.DiscordID, "error", err)
			writeMessage(w, http.StatusInternalServerError, "An internal server error occurred.")
		}
	}))
}

func Health(muxer *http.ServeMux) {
	muxer.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}
