// Thin wrapper over discordgo for everything the bridge asks of Discord:
// posting review prompts, answering button interactions, and resolving
// members and roles of the guild.
package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrChannelNotFound        = errors.New("channel not found")
	ErrMemberNotFound         = errors.New("member not found")
	ErrRoleNotFound           = errors.New("role not found")
	ErrDirectMessagesDisabled = errors.New("direct messages disabled")
)

type Session struct {
	dg              *discordgo.Session
	reviewChannelID string
	// called with the latency of every message sent or edited
	onSend func(time.Duration)
}

func NewSession(dg *discordgo.Session, reviewChannelID string, onSend func(time.Duration)) *Session {
	if onSend == nil {
		onSend = func(time.Duration) {}
	}
	return &Session{dg: dg, reviewChannelID: reviewChannelID, onSend: onSend}
}

func (s *Session) ReviewChannel() (*discordgo.Channel, error) {
	if channel, err := s.dg.State.Channel(s.reviewChannelID); err == nil {
		return channel, nil
	}
	channel, err := s.dg.Channel(s.reviewChannelID)
	if err != nil {
		if isRESTCode(err, http.StatusNotFound, discordgo.ErrCodeUnknownChannel) {
			return nil, fmt.Errorf("(*Session).ReviewChannel: %w", ErrChannelNotFound)
		}
		return nil, fmt.Errorf("(*Session).ReviewChannel: %w", err)
	}
	if channel == nil {
		return nil, fmt.Errorf("(*Session).ReviewChannel: %w", ErrChannelNotFound)
	}
	return channel, nil
}

func (s *Session) PostPrompt(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	startTimer := time.Now()
	message, err := s.dg.ChannelMessageSendComplex(channelID, msg)
	if err != nil {
		return nil, fmt.Errorf("(*Session).PostPrompt: %w", err)
	}
	s.onSend(time.Since(startTimer))
	return message, nil
}

// Defers the update of the message the button lives on. Must be the first
// call for a component interaction, Discord only waits 3 seconds for it.
func (s *Session) Acknowledge(i *discordgo.Interaction) error {
	startTimer := time.Now()
	if err := s.dg.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		return fmt.Errorf("(*Session).Acknowledge: %w", err)
	}
	s.onSend(time.Since(startTimer))
	return nil
}

// Sends a follow-up only the clicking staff member can see.
func (s *Session) FollowUpHidden(i *discordgo.Interaction, content string) error {
	startTimer := time.Now()
	if _, err := s.dg.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		return fmt.Errorf("(*Session).FollowUpHidden: %w", err)
	}
	s.onSend(time.Since(startTimer))
	return nil
}

// Replaces the prompt text and removes its buttons.
func (s *Session) FinalizePrompt(i *discordgo.Interaction, content string) error {
	startTimer := time.Now()
	components := []discordgo.MessageComponent{}
	if _, err := s.dg.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	}); err != nil {
		return fmt.Errorf("(*Session).FinalizePrompt: %w", err)
	}
	s.onSend(time.Since(startTimer))
	return nil
}

// Looks the member up by user ID: state cache first, then the REST API.
func (s *Session) Member(guildID, userID string) (*discordgo.Member, error) {
	if member, err := s.dg.State.Member(guildID, userID); err == nil && member.User != nil {
		return member, nil
	}
	member, err := s.dg.GuildMember(guildID, userID)
	if err != nil {
		if isRESTCode(err, http.StatusNotFound, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser) ||
			isRESTCode(err, http.StatusBadRequest) {
			return nil, fmt.Errorf("(*Session).Member: %w", ErrMemberNotFound)
		}
		return nil, fmt.Errorf("(*Session).Member: %w", err)
	}
	if member == nil || member.User == nil {
		return nil, fmt.Errorf("(*Session).Member: %w", ErrMemberNotFound)
	}
	return member, nil
}

func (s *Session) Role(guildID, roleID string) (*discordgo.Role, error) {
	if role, err := s.dg.State.Role(guildID, roleID); err == nil {
		return role, nil
	}
	roles, err := s.dg.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("(*Session).Role: %w", err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, fmt.Errorf("(*Session).Role: %w", ErrRoleNotFound)
}

func (s *Session) AddRole(guildID, userID, roleID string) error {
	if err := s.dg.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("(*Session).AddRole: %w", err)
	}
	return nil
}

func (s *Session) Guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := s.dg.State.Guild(guildID); err == nil {
		return guild, nil
	}
	guild, err := s.dg.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("(*Session).Guild: %w", err)
	}
	return guild, nil
}

// Sends an embed to the user's DM channel. Returns ErrDirectMessagesDisabled
// when Discord refuses because of the user's privacy settings.
func (s *Session) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	startTimer := time.Now()
	channel, err := s.dg.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("(*Session).SendDM: %w", classifyDMError(err))
	}
	if _, err := s.dg.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		return fmt.Errorf("(*Session).SendDM: %w", classifyDMError(err))
	}
	s.onSend(time.Since(startTimer))
	return nil
}

func classifyDMError(err error) error {
	if isRESTCode(err, 0, discordgo.ErrCodeCannotSendMessagesToThisUser) {
		return fmt.Errorf("%w: %w", ErrDirectMessagesDisabled, err)
	}
	return err
}

// Reports whether err is a Discord REST error with the given HTTP status
// (0 matches any) and, if codes are given, one of those JSON error codes.
func isRESTCode(err error, status int, codes ...int) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if status != 0 && (restErr.Response == nil || restErr.Response.StatusCode != status) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	if restErr.Message == nil {
		return false
	}
	for _, code := range codes {
		if restErr.Message.Code == code {
			return true
		}
	}
	return false
}
