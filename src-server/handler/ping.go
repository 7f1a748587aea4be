package handler

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"regbridge/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

func Ping(as *utils.AppState) {
	id := "ping"
	as.AddAppCmdHandler(id, pingHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Show the registration bridge status.",
	})
}

func pingHandler(as *utils.AppState) utils.InteractionHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		embeds := pingEmbeds(pingInfo{
			GuildID:         i.GuildID,
			Uptime:          as.GetUptime(),
			Latency:         s.HeartbeatLatency(),
			MemoryMB:        float64(m.Sys) / 1024 / 1024,
			CooldownBackend: string(as.Config.GetCooldownBackend()),
			CooldownPeriod:  as.Cooldown.Period(),
		})

		startTimer := time.Now()
		if err := utils.InteractRespHiddenEmbeds(s, i, embeds); err != nil {
			slog.Warn("pingHandler: can't respond", "error", err)
			return nil
		}
		as.MetricChans.ObserveDiscordSendMessage(time.Since(startTimer))
		return nil
	}
}

type pingInfo struct {
	GuildID         string
	Uptime          time.Duration
	Latency         time.Duration
	MemoryMB        float64
	CooldownBackend string
	CooldownPeriod  time.Duration
}

func pingEmbeds(info pingInfo) []*discordgo.MessageEmbed {
	return []*discordgo.MessageEmbed{
		{
			Title: "Pong!",
			Footer: &discordgo.MessageEmbedFooter{
				Text: info.GuildID,
			},
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:  "Uptime",
					Value: info.Uptime.String(),
				},
				{
					Name:   "Latency",
					Value:  fmt.Sprintf("%dms", info.Latency.Milliseconds()),
					Inline: true,
				},
				{
					Name:   "Go version",
					Value:  runtime.Version(),
					Inline: true,
				},
				{
					Name:   "Memory",
					Value:  fmt.Sprintf("%.2fMB", info.MemoryMB),
					Inline: true,
				},
				{
					Name:   "Cooldown",
					Value:  fmt.Sprintf("%s, %s", info.CooldownPeriod, info.CooldownBackend),
					Inline: true,
				},
			},
		},
	}
}
