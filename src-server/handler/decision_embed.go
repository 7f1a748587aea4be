package handler

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	acceptColor = 0x57F287
	denyColor   = 0xED4245
)

func guildFooter(guild *discordgo.Guild) *discordgo.MessageEmbedFooter {
	if guild == nil {
		return nil
	}
	return &discordgo.MessageEmbedFooter{
		Text:    guild.Name,
		IconURL: guild.IconURL(""),
	}
}

func (h *DecisionHandler) acceptEmbed(guild *discordgo.Guild, member *discordgo.Member, role *discordgo.Role) *discordgo.MessageEmbed {
	battle := "The journey begins now. Hone your skills and get ready to compete!"
	if h.config.TournamentStart != "" {
		battle += fmt.Sprintf(" See you on %s.", h.config.TournamentStart)
	}
	return &discordgo.MessageEmbed{
		Color:     acceptColor,
		Title:     "⚔️ Welcome to the Arena, Contender!",
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: member.User.AvatarURL("")},
		Description: fmt.Sprintf(
			"Congratulations, **%s**! Your spot in the **%s** has been officially secured.",
			member.User.Username, h.config.TournamentName,
		),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Access Granted",
				Value: fmt.Sprintf("You have been given the **%s** role, unlocking exclusive tournament channels.", role.Name),
			},
			{
				Name:  "Next Steps",
				Value: "Please keep an eye on the announcements channel for bracket information and match schedules.",
			},
			{
				Name:  "Prepare for Battle!",
				Value: battle,
			},
		},
		Footer:    guildFooter(guild),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *DecisionHandler) denyEmbed(guild *discordgo.Guild, member *discordgo.Member) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color: denyColor,
		Title: "Registration Status Update",
		Description: fmt.Sprintf(
			"Hello **%s**, thank you for your interest in the **%s**.",
			member.User.Username, h.config.TournamentName,
		),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Our Decision",
				Value: "Due to the high volume of applications and limited spots, we are unfortunately unable to offer you a position in this event.",
			},
			{
				Name:  "Stay Connected",
				Value: "We encourage you to stay active in our community for future events and tournaments. We appreciate your passion and skill!",
			},
		},
		Footer:    guildFooter(guild),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
