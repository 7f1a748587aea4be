package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"regbridge/src-server/handler"
	"regbridge/src-server/intake"
	"regbridge/src-server/metric"
	"regbridge/src-server/route"
	"regbridge/src-server/scheduler"
	"regbridge/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	// AppState carries the config, the stores, the Discord session and the
	// interaction handler maps
	as := utils.NewAppState()

	// injecting interaction handlers into AppState
	handler.Decision(as)
	handler.Ping(as)

	as.DgSession.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand: // slash commands
			name := i.ApplicationCommandData().Name
			if handler, ok := as.GetAppCmdHandler(name); ok {
				if err := handler(s, i); err != nil {
					slog.Error("handler error", "command", name, "error", err)
				}
				return
			}
			if err := utils.InteractRespHiddenReply(s, i, "Expired interaction"); err != nil {
				slog.Warn("can't respond", "error", err)
			}
			slog.Debug("someone used an expired command", "command", name)
		case discordgo.InteractionMessageComponent: // buttons
			customID := i.MessageComponentData().CustomID
			handler, ok := as.GetMsgComponentHandler(customID)
			if !ok {
				slog.Debug("ignoring unknown component", "custom_id", customID)
				return
			}
			if err := handler(s, i); err != nil {
				slog.Error("handler error", "custom_id", customID, "error", err)
			}
		default:
			slog.Debug("ignoring interaction", "type", i.Type)
		}
	})
	as.DgSession.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("logged in to discord", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	// open a connection to Discord
	if err := as.DgSession.Open(); err != nil {
		slog.Error("error opening connection", "error", err)
		as.GracefulShutdown()
		os.Exit(1)
	}
	defer as.DgSession.Close()

	// tell Discord what commands we have
	if _, err := as.DgSession.ApplicationCommandBulkOverwrite(
		as.Config.GetDiscordClientId(),
		as.Config.GetDiscordGuildID(),
		func() []*discordgo.ApplicationCommand {
			var cmds []*discordgo.ApplicationCommand
			as.IterateAppCmdInfo(func(k string, v *discordgo.ApplicationCommand) {
				cmds = append(cmds, v)
			})
			return cmds
		}()); err != nil {
		slog.Error("can't create slash commands", "error", err)
	}

	// cleanup appCmdInfo from memory
	as.NukeAppCmdInfo()
	runtime.GC()

	metric.Init(as)
	if as.Config.GetCooldownBackend() == utils.COOLDOWN_BACKEND_SQLITE {
		if sweeper, ok := as.CooldownStore.(scheduler.Sweeper); ok {
			go scheduler.CooldownSweep(as.CreateGracefulShutdownChan(), sweeper, as.Config.GetCooldownSweepInterval())
		}
	}

	// http server
	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	route.Register(
		muxer,
		intake.New(as.Cooldown, as.Discord, as.MetricChans),
		rate.NewLimiter(rate.Limit(as.Config.GetRegisterRateLimit()), as.Config.GetRegisterRateBurst()),
	)
	route.Health(muxer)
	server := &http.Server{
		Addr:              ":" + as.Config.GetPort(),
		Handler:           route.CorsMiddleware(as.Config.GetCorsAllowOrigin(), muxer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan

	slog.Info("Gracefully shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("can't shut down HTTP server", "error", err)
	}
	as.GracefulShutdown()
}
