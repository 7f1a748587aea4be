package intake

import (
	"fmt"
	"time"

	"regbridge/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

const promptColor = 0x3f51b5

// The review prompt posted to the staff channel: application embed plus
// the Accept and Deny buttons carrying the action tokens.
func RenderPrompt(app Application, submissionID string, receivedAt time.Time) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title: "New Tournament Registration!",
				Color: promptColor,
				Fields: []*discordgo.MessageEmbedField{
					{Name: "Full Name", Value: app.FullName, Inline: true},
					{Name: "Age", Value: app.Age, Inline: true},
					{Name: "Email Address", Value: app.Email, Inline: false},
					{Name: "In-Game Name (IGN)", Value: app.IGN, Inline: true},
					{Name: "Discord ID", Value: app.DiscordID, Inline: true},
				},
				Footer: &discordgo.MessageEmbedFooter{
					Text: fmt.Sprintf("Registration received at: %s • %s", receivedAt.UTC().Format(time.RFC1123), submissionID),
				},
				Timestamp: receivedAt.UTC().Format(time.RFC3339),
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Accept",
						Style:    discordgo.SuccessButton,
						CustomID: utils.EncodeActionToken(utils.ACTION_ACCEPT, app.DiscordID),
					},
					discordgo.Button{
						Label:    "Deny",
						Style:    discordgo.DangerButton,
						CustomID: utils.EncodeActionToken(utils.ACTION_DENY, app.DiscordID),
					},
				},
			},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
}
