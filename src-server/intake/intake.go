// Registration intake: cooldown check, review prompt, cooldown record.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"regbridge/src-server/cooldown"
	"regbridge/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

var (
	ErrRateLimited         = errors.New("rate limited")
	ErrChannelUnavailable  = errors.New("review channel unavailable")
	ErrDeliveryFailed      = errors.New("review prompt delivery failed")
	ErrCooldownUnavailable = errors.New("cooldown store unavailable")
)

type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: try again in %s", cooldown.FormatRemaining(e.Remaining))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

type ReviewChannel interface {
	ReviewChannel() (*discordgo.Channel, error)
	PostPrompt(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
}

type Accepted struct {
	SubmissionID string
	MessageID    string
}

type Intake struct {
	cooldown *cooldown.Cooldown
	channel  ReviewChannel
	metric   *utils.Metric
	now      func() time.Time

	mu sync.Mutex
	// applicants with a submission between cooldown check and cooldown record
	inflight map[string]struct{}
}

func New(cd *cooldown.Cooldown, channel ReviewChannel, metric *utils.Metric) *Intake {
	return &Intake{
		cooldown: cd,
		channel:  channel,
		metric:   metric,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Overrides the clock, for tests.
func (in *Intake) WithClock(now func() time.Time) *Intake {
	in.now = now
	return in
}

// Posts the application for staff review unless the applicant is still in
// their cooldown window. The cooldown is checked before posting and
// recorded only after the post went through, so a failed post doesn't burn
// the applicant's window.
func (in *Intake) Submit(ctx context.Context, app Application) (Accepted, error) {
	applicantID := app.DiscordID
	now := in.now()

	if !in.claim(applicantID) {
		in.metric.CountRegistration("rate_limited")
		return Accepted{}, &RateLimitedError{Remaining: in.cooldown.Period()}
	}
	defer in.release(applicantID)

	remaining, err := in.cooldown.TimeRemaining(ctx, applicantID, now)
	if err != nil {
		in.metric.CountRegistration("error")
		return Accepted{}, fmt.Errorf("(*Intake).Submit: %w: %w", ErrCooldownUnavailable, err)
	}
	if remaining > 0 {
		in.metric.CountRegistration("rate_limited")
		return Accepted{}, &RateLimitedError{Remaining: remaining}
	}

	channel, err := in.channel.ReviewChannel()
	if err != nil {
		in.metric.CountRegistration("channel_unavailable")
		return Accepted{}, fmt.Errorf("(*Intake).Submit: %w: %w", ErrChannelUnavailable, err)
	}

	submissionID := uuid.NewString()
	message, err := in.channel.PostPrompt(channel.ID, RenderPrompt(app, submissionID, now))
	if err != nil {
		in.metric.CountRegistration("delivery_failed")
		return Accepted{}, fmt.Errorf("(*Intake).Submit: %w: %w", ErrDeliveryFailed, err)
	}

	// the prompt is out already; a failed record only loses the cooldown
	if err := in.cooldown.RecordSubmission(ctx, applicantID, now); err != nil {
		slog.Error("can't record cooldown", "applicant", applicantID, "submission", submissionID, "error", err)
	}

	in.metric.CountRegistration("accepted")
	slog.Info("registration posted for review", "applicant", applicantID, "submission", submissionID, "message", message.ID)
	return Accepted{SubmissionID: submissionID, MessageID: message.ID}, nil
}

func (in *Intake) claim(applicantID string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, busy := in.inflight[applicantID]; busy {
		return false
	}
	in.inflight[applicantID] = struct{}{}
	return true
}

func (in *Intake) release(applicantID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.inflight, applicantID)
}
