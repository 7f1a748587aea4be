package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"regbridge/src-server/discord"
	"regbridge/src-server/model"
	"regbridge/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
)

const genericWarning = "⚠️ An error occurred while processing this action. Please check the bot's permissions and role hierarchy."

// What the decision handler needs from Discord.
type Platform interface {
	Acknowledge(i *discordgo.Interaction) error
	FollowUpHidden(i *discordgo.Interaction, content string) error
	FinalizePrompt(i *discordgo.Interaction, content string) error
	Member(guildID, userID string) (*discordgo.Member, error)
	Role(guildID, roleID string) (*discordgo.Role, error)
	AddRole(guildID, userID, roleID string) error
	Guild(guildID string) (*discordgo.Guild, error)
	SendDM(userID string, embed *discordgo.MessageEmbed) error
}

type DecisionConfig struct {
	AcceptedRoleID  string
	TournamentName  string
	TournamentStart string
}

// Handles the Accept/Deny buttons of review prompts.
type DecisionHandler struct {
	platform Platform
	db       bun.IDB
	metric   *utils.Metric
	config   DecisionConfig

	mu sync.Mutex
	// prompts with a click being handled, keyed by message ID
	inflight map[string]struct{}
}

func NewDecisionHandler(platform Platform, db bun.IDB, metric *utils.Metric, config DecisionConfig) *DecisionHandler {
	config.TournamentName = utils.CleanupString(config.TournamentName)
	return &DecisionHandler{
		platform: platform,
		db:       db,
		metric:   metric,
		config:   config,
		inflight: make(map[string]struct{}),
	}
}

func Decision(as *utils.AppState) {
	h := NewDecisionHandler(as.Discord, as.BunDB, as.MetricChans, DecisionConfig{
		AcceptedRoleID:  as.Config.GetAcceptedRoleID(),
		TournamentName:  as.Config.GetTournamentName(),
		TournamentStart: as.Config.GetTournamentStart(),
	})
	as.AddMsgComponentHandler(utils.ACTION_ACCEPT, h.Handle)
	as.AddMsgComponentHandler(utils.ACTION_DENY, h.Handle)
}

func (h *DecisionHandler) Handle(_ *discordgo.Session, i *discordgo.InteractionCreate) error {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return nil
	}
	action, applicantID, ok := utils.ParseActionToken(i.MessageComponentData().CustomID)
	if !ok {
		return nil
	}
	interaction := i.Interaction

	// must come before anything else, Discord drops the interaction after 3s
	if err := h.platform.Acknowledge(interaction); err != nil {
		h.metric.CountDecision(action, "ack_failed")
		return fmt.Errorf("(*DecisionHandler).Handle: can't acknowledge: %w", err)
	}

	if !isStaff(interaction) {
		h.followUp(interaction, "⛔ You don't have permission to decide on registrations.")
		h.metric.CountDecision(action, "forbidden")
		return nil
	}

	// discordgo runs every event on its own goroutine; one click per prompt at a time
	key := messageID(interaction)
	if key == "" {
		key = applicantID
	}
	if !h.claim(key) {
		h.followUp(interaction, "⏳ This registration is already being processed.")
		h.metric.CountDecision(action, "busy")
		return nil
	}
	defer h.release(key)

	member, err := h.platform.Member(interaction.GuildID, applicantID)
	if err != nil {
		if errors.Is(err, discord.ErrMemberNotFound) {
			h.followUp(interaction, fmt.Sprintf(
				"❌ Could not find user with Discord ID \"%s\". They may have left the server.", applicantID,
			))
			h.metric.CountDecision(action, "member_not_found")
			return nil
		}
		h.followUp(interaction, genericWarning)
		h.metric.CountDecision(action, "error")
		return fmt.Errorf("(*DecisionHandler).Handle: can't resolve member: %w", err)
	}

	ctx := context.Background()
	record, err := h.loadDecision(ctx, interaction)
	if err != nil {
		slog.Warn("(*DecisionHandler).Handle: can't load decision record", "error", err)
	}
	switch {
	case record == nil:
		record = &model.Decision{
			MessageID:   messageID(interaction),
			ApplicantID: applicantID,
			Action:      model.DecisionAction(action),
			StaffID:     staffID(interaction),
		}
	case string(record.Action) != action:
		h.followUp(interaction, fmt.Sprintf("⚠️ This registration was already %s.", pastTense(string(record.Action))))
		h.metric.CountDecision(action, "conflict")
		return nil
	}

	if action == utils.ACTION_ACCEPT {
		return h.accept(ctx, interaction, member, record)
	}
	return h.deny(ctx, interaction, member, record)
}

func (h *DecisionHandler) accept(ctx context.Context, interaction *discordgo.Interaction, member *discordgo.Member, record *model.Decision) error {
	role, err := h.platform.Role(interaction.GuildID, h.config.AcceptedRoleID)
	if err != nil {
		slog.Error("accepted role not found", "role", h.config.AcceptedRoleID, "error", err)
		h.followUp(interaction, "⚠️ Error: The specified role was not found on the server.")
		h.metric.CountDecision(utils.ACTION_ACCEPT, "config_error")
		if errors.Is(err, discord.ErrRoleNotFound) {
			return nil
		}
		return fmt.Errorf("(*DecisionHandler).accept: can't get role: %w", err)
	}

	if !record.RoleGranted {
		if err := h.platform.AddRole(interaction.GuildID, member.User.ID, role.ID); err != nil {
			h.followUp(interaction, genericWarning)
			h.metric.CountDecision(utils.ACTION_ACCEPT, "error")
			return fmt.Errorf("(*DecisionHandler).accept: can't add role: %w", err)
		}
		record.RoleGranted = true
		h.saveDecision(ctx, record)
	}

	tag := userTag(member.User)
	content := fmt.Sprintf("✅ **Accepted** %s and assigned the \"%s\" role.", tag, role.Name)
	outcome := "ok"
	if !record.Notified {
		guild, _ := h.platform.Guild(interaction.GuildID)
		switch err := h.platform.SendDM(member.User.ID, h.acceptEmbed(guild, member, role)); {
		case errors.Is(err, discord.ErrDirectMessagesDisabled):
			h.followUp(interaction, fmt.Sprintf("⚠️ Could not send a DM to %s. They may have DMs disabled.", tag))
			content += " ⚠️ The welcome DM could not be delivered."
			outcome = "dm_disabled"
		case err != nil:
			h.followUp(interaction, genericWarning)
			h.metric.CountDecision(utils.ACTION_ACCEPT, "error")
			return fmt.Errorf("(*DecisionHandler).accept: can't send DM: %w", err)
		default:
			record.Notified = true
			h.saveDecision(ctx, record)
		}
	}

	return h.finalize(interaction, record, content, outcome)
}

func (h *DecisionHandler) deny(ctx context.Context, interaction *discordgo.Interaction, member *discordgo.Member, record *model.Decision) error {
	tag := userTag(member.User)
	content := fmt.Sprintf("❌ **Denied** %s. A notification DM has been sent.", tag)
	outcome := "ok"
	if !record.Notified {
		guild, _ := h.platform.Guild(interaction.GuildID)
		switch err := h.platform.SendDM(member.User.ID, h.denyEmbed(guild, member)); {
		case errors.Is(err, discord.ErrDirectMessagesDisabled):
			h.followUp(interaction, fmt.Sprintf("⚠️ Could not send a DM to %s. They may have DMs disabled.", tag))
			content = fmt.Sprintf("❌ **Denied** %s. ⚠️ The notification DM could not be delivered.", tag)
			outcome = "dm_disabled"
		case err != nil:
			// nothing recorded, the prompt stays open for either action
			h.followUp(interaction, genericWarning)
			h.metric.CountDecision(utils.ACTION_DENY, "error")
			return fmt.Errorf("(*DecisionHandler).deny: can't send DM: %w", err)
		default:
			record.Notified = true
		}
	}
	h.saveDecision(ctx, record)

	return h.finalize(interaction, record, content, outcome)
}

// Rewrites the prompt and drops its buttons so it can't be decided twice.
func (h *DecisionHandler) finalize(interaction *discordgo.Interaction, record *model.Decision, content, outcome string) error {
	if err := h.platform.FinalizePrompt(interaction, content); err != nil {
		h.metric.CountDecision(string(record.Action), "finalize_failed")
		return fmt.Errorf("(*DecisionHandler).finalize: %w", err)
	}
	h.metric.CountDecision(string(record.Action), outcome)
	slog.Info("decision applied",
		"action", record.Action,
		"applicant", record.ApplicantID,
		"staff", record.StaffID,
		"message", record.MessageID,
		"outcome", outcome,
	)
	return nil
}

func (h *DecisionHandler) claim(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inflight[key]; busy {
		return false
	}
	h.inflight[key] = struct{}{}
	return true
}

func (h *DecisionHandler) release(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, key)
}

func (h *DecisionHandler) followUp(interaction *discordgo.Interaction, content string) {
	if err := h.platform.FollowUpHidden(interaction, content); err != nil {
		slog.Warn("can't send follow-up", "content", content, "error", err)
	}
}

// Returns nil, nil when no decision was recorded for the prompt yet.
func (h *DecisionHandler) loadDecision(ctx context.Context, interaction *discordgo.Interaction) (*model.Decision, error) {
	id := messageID(interaction)
	if h.db == nil || id == "" {
		return nil, nil
	}
	record := new(model.Decision)
	if err := h.db.NewSelect().
		Model(record).
		Where("message_id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("(*DecisionHandler).loadDecision: %w", err)
	}
	return record, nil
}

// Best effort: a lost record only costs the resume-on-retry behavior.
func (h *DecisionHandler) saveDecision(ctx context.Context, record *model.Decision) {
	if h.db == nil || record.MessageID == "" {
		return
	}
	if err := record.Upsert(ctx, h.db); err != nil {
		slog.Warn("can't save decision record", "message", record.MessageID, "error", err)
	}
}

func isStaff(interaction *discordgo.Interaction) bool {
	if interaction.Member == nil {
		return false
	}
	return interaction.Member.Permissions&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) != 0
}

func staffID(interaction *discordgo.Interaction) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return "unknown"
}

func messageID(interaction *discordgo.Interaction) string {
	if interaction.Message == nil {
		return ""
	}
	return interaction.Message.ID
}

func pastTense(action string) string {
	switch action {
	case utils.ACTION_ACCEPT:
		return "accepted"
	case utils.ACTION_DENY:
		return "denied"
	}
	return "decided"
}

// username, or username#1234 for accounts not migrated to unique usernames
func userTag(user *discordgo.User) string {
	if user.Discriminator == "" || user.Discriminator == "0" {
		return user.Username
	}
	return user.String()
}
