package utils

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"time"

	"regbridge/src-server/cooldown"
	"regbridge/src-server/discord"
	"regbridge/src-server/model"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate) error

type AppState struct {
	Config    *Config
	RawDB     *sql.DB
	BunDB     *bun.DB
	Redis     *redis.Client // nil unless COOLDOWN_BACKEND=redis
	DgSession *discordgo.Session
	Discord   *discord.Session

	CooldownStore cooldown.Store
	Cooldown      *cooldown.Cooldown

	MetricChans        *Metric
	AppCloseSignalChan chan os.Signal

	startedAt time.Time

	mu sync.RWMutex
	// will be send to Discord
	appCmdInfo map[string]*discordgo.ApplicationCommand
	// handling slash commands from Discord WSAPI
	appCmdHandler map[string]InteractionHandler
	// same as above but for msg components (buttons), keyed by custom ID prefix
	msgComponentHandler map[string]InteractionHandler

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func NewAppState() *AppState {
	as := &AppState{
		startedAt:           time.Now(),
		appCmdInfo:          make(map[string]*discordgo.ApplicationCommand),
		appCmdHandler:       make(map[string]InteractionHandler),
		msgComponentHandler: make(map[string]InteractionHandler),
		shutdown:            make(chan struct{}),
		AppCloseSignalChan:  make(chan os.Signal, 1),
		MetricChans:         NewMetric(),
	}

	// env
	as.Config = NewConfig()

	// database; decisions are always kept in sqlite, cooldowns depend on the backend
	var err error
	as.RawDB, err = sql.Open(sqliteshim.ShimName, as.Config.GetSqlitePath()+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "error", err)
		os.Exit(1)
	}
	as.RawDB.SetMaxIdleConns(8)

	as.BunDB = bun.NewDB(as.RawDB, sqlitedialect.New())
	as.BunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))
	if err := model.CreateSchema(context.Background(), as.BunDB); err != nil {
		slog.Error("can't create database schema", "error", err)
		os.Exit(1)
	}

	// cooldown store
	period := as.Config.GetCooldownPeriod()
	var store cooldown.Store
	switch as.Config.GetCooldownBackend() {
	case COOLDOWN_BACKEND_MEMORY:
		store = cooldown.NewMemoryStore()
	case COOLDOWN_BACKEND_REDIS:
		as.Redis = redis.NewClient(&redis.Options{
			Addr:     as.Config.GetRedisAddr(),
			Password: as.Config.GetRedisPassword(),
			DB:       as.Config.GetRedisDB(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := as.Redis.Ping(ctx).Err(); err != nil {
			slog.Error("cannot reach redis", "addr", as.Config.GetRedisAddr(), "error", err)
			os.Exit(1)
		}
		store = cooldown.NewRedisStore(as.Redis, period)
	default:
		store = cooldown.NewBunStore(as.BunDB, period)
	}
	as.CooldownStore = store
	as.Cooldown = cooldown.New(
		cooldown.WithObserver(store, as.MetricChans.ObserveDatabaseRead, as.MetricChans.ObserveDatabaseWrite),
		period,
	)
	slog.Info("cooldown store ready", "backend", as.Config.GetCooldownBackend(), "period", period)

	// discord
	as.DgSession, err = discordgo.New("Bot " + as.Config.GetDiscordAppToken())
	if err != nil {
		slog.Error("cannot create discord session", "error", err)
		os.Exit(1)
	}
	as.DgSession.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	as.Discord = discord.NewSession(as.DgSession, as.Config.GetReviewChannelID(), as.MetricChans.ObserveDiscordSendMessage)

	return as
}

func (as *AppState) GetUptime() time.Duration {
	return time.Since(as.startedAt).Round(time.Second)
}

func (as *AppState) AddAppCmdInfo(id string, info *discordgo.ApplicationCommand) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.appCmdInfo[id] = info
}

func (as *AppState) IterateAppCmdInfo(fn func(k string, v *discordgo.ApplicationCommand)) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	for k, v := range as.appCmdInfo {
		fn(k, v)
	}
}

// The command info is only needed once, to register the commands with Discord.
func (as *AppState) NukeAppCmdInfo() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.appCmdInfo = make(map[string]*discordgo.ApplicationCommand)
}

func (as *AppState) AddAppCmdHandler(id string, handler InteractionHandler) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.appCmdHandler[id] = handler
}

func (as *AppState) GetAppCmdHandler(id string) (InteractionHandler, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	handler, ok := as.appCmdHandler[id]
	return handler, ok
}

func (as *AppState) AddMsgComponentHandler(prefix string, handler InteractionHandler) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.msgComponentHandler[prefix] = handler
}

// Looks up the handler by the prefix of the custom ID, e.g. "accept" for
// "accept:1234".
func (as *AppState) GetMsgComponentHandler(customID string) (InteractionHandler, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	handler, ok := as.msgComponentHandler[CustomIDPrefix(customID)]
	return handler, ok
}

// Closed when the app shuts down; long running goroutines select on it.
func (as *AppState) CreateGracefulShutdownChan() <-chan struct{} {
	return as.shutdown
}

func (as *AppState) GracefulShutdown() {
	as.shutdownOnce.Do(func() {
		close(as.shutdown)
		if as.Redis != nil {
			if err := as.Redis.Close(); err != nil {
				slog.Warn("can't close redis client", "error", err)
			}
		}
		if as.BunDB != nil {
			if err := as.BunDB.Close(); err != nil {
				slog.Warn("can't close database", "error", err)
			}
		}
	})
}
