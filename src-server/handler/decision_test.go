package handler_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"regbridge/src-server/discord"
	"regbridge/src-server/handler"
	"regbridge/src-server/model"
	"regbridge/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const acceptedRoleID = "R1"

type dmCall struct {
	userID string
	embed  *discordgo.MessageEmbed
}

type fakePlatform struct {
	mu sync.Mutex

	members map[string]*discordgo.Member
	roles   map[string]*discordgo.Role

	ackErr      error
	memberErr   error
	addRoleErr  error
	dmErr       error
	finalizeErr error

	// when set, SendDM signals dmReached and then waits for dmGate to close
	dmReached chan struct{}
	dmGate    chan struct{}

	calls      []string
	followUps  []string
	finalized  []string
	rolesAdded []string
	dms        []dmCall
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members: map[string]*discordgo.Member{
			"U1": {User: &discordgo.User{ID: "U1", Username: "annx"}},
		},
		roles: map[string]*discordgo.Role{
			acceptedRoleID: {ID: acceptedRoleID, Name: "Contender"},
		},
	}
}

func (f *fakePlatform) Acknowledge(*discordgo.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ack")
	return f.ackErr
}

func (f *fakePlatform) FollowUpHidden(_ *discordgo.Interaction, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "followup")
	f.followUps = append(f.followUps, content)
	return nil
}

func (f *fakePlatform) FinalizePrompt(_ *discordgo.Interaction, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "finalize")
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = append(f.finalized, content)
	return nil
}

func (f *fakePlatform) Member(_, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "member")
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	member, ok := f.members[userID]
	if !ok {
		return nil, fmt.Errorf("fake: %w", discord.ErrMemberNotFound)
	}
	return member, nil
}

func (f *fakePlatform) Role(_, roleID string) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "role")
	role, ok := f.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("fake: %w", discord.ErrRoleNotFound)
	}
	return role, nil
}

func (f *fakePlatform) AddRole(_, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "addrole")
	if f.addRoleErr != nil {
		return f.addRoleErr
	}
	f.rolesAdded = append(f.rolesAdded, userID+"/"+roleID)
	return nil
}

func (f *fakePlatform) Guild(guildID string) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID, Name: "Arena"}, nil
}

func (f *fakePlatform) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	f.calls = append(f.calls, "dm")
	f.mu.Unlock()
	if f.dmReached != nil {
		f.dmReached <- struct{}{}
		<-f.dmGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms = append(f.dms, dmCall{userID: userID, embed: embed})
	return nil
}

func newDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bundb := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })
	require.NoError(t, model.CreateSchema(context.Background(), bundb))
	return bundb
}

func newHandler(t *testing.T, platform *fakePlatform) (*handler.DecisionHandler, *bun.DB) {
	db := newDB(t)
	return handler.NewDecisionHandler(platform, db, utils.NewMetric(), handler.DecisionConfig{
		AcceptedRoleID:  acceptedRoleID,
		TournamentName:  "Minecraft Esport Tournament",
		TournamentStart: "19th September",
	}), db
}

func click(customID, messageID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "G1",
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID},
		Message: &discordgo.Message{ID: messageID},
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "STAFF", Username: "mod"},
			Permissions: discordgo.PermissionManageRoles,
		},
	}}
}

func decisionRecord(t *testing.T, db *bun.DB, messageID string) *model.Decision {
	t.Helper()
	record := new(model.Decision)
	require.NoError(t, db.NewSelect().Model(record).Where("message_id = ?", messageID).Scan(context.Background()))
	return record
}

func count(calls []string, name string) int {
	n := 0
	for _, call := range calls {
		if call == name {
			n++
		}
	}
	return n
}

func TestAccept(t *testing.T) {
	platform := newFakePlatform()
	h, db := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))

	assert.Equal(t, "ack", platform.calls[0], "the interaction must be acknowledged first")
	assert.Equal(t, []string{"U1/" + acceptedRoleID}, platform.rolesAdded)
	require.Len(t, platform.dms, 1)
	assert.Equal(t, "U1", platform.dms[0].userID)
	assert.Equal(t, "⚔️ Welcome to the Arena, Contender!", platform.dms[0].embed.Title)
	assert.Contains(t, platform.dms[0].embed.Description, "Minecraft Esport Tournament")
	assert.Contains(t, platform.dms[0].embed.Fields[2].Value, "19th September")
	assert.Equal(t, "Arena", platform.dms[0].embed.Footer.Text)
	require.Len(t, platform.finalized, 1)
	assert.Equal(t, `✅ **Accepted** annx and assigned the "Contender" role.`, platform.finalized[0])
	assert.Empty(t, platform.followUps)

	record := decisionRecord(t, db, "M1")
	assert.Equal(t, model.DECISION_ACTION_ACCEPT, record.Action)
	assert.Equal(t, "U1", record.ApplicantID)
	assert.Equal(t, "STAFF", record.StaffID)
	assert.True(t, record.RoleGranted)
	assert.True(t, record.Notified)
}

func TestAcceptReplayDoesNotGrantTwice(t *testing.T) {
	platform := newFakePlatform()
	h, _ := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))
	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))

	assert.Equal(t, 1, count(platform.calls, "addrole"))
	assert.Equal(t, 1, count(platform.calls, "dm"))
	assert.Len(t, platform.finalized, 2)
}

func TestDeny(t *testing.T) {
	platform := newFakePlatform()
	h, db := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("deny:U1", "M1")))

	assert.Equal(t, "ack", platform.calls[0])
	assert.Empty(t, platform.rolesAdded)
	assert.Equal(t, 0, count(platform.calls, "role"))
	require.Len(t, platform.dms, 1)
	assert.Equal(t, "Registration Status Update", platform.dms[0].embed.Title)
	require.Len(t, platform.finalized, 1)
	assert.Equal(t, "❌ **Denied** annx. A notification DM has been sent.", platform.finalized[0])

	record := decisionRecord(t, db, "M1")
	assert.Equal(t, model.DECISION_ACTION_DENY, record.Action)
	assert.False(t, record.RoleGranted)
	assert.True(t, record.Notified)
}

func TestMemberNotFound(t *testing.T) {
	platform := newFakePlatform()
	h, _ := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("deny:U2", "M2")))

	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], `Could not find user with Discord ID "U2"`)
	assert.Empty(t, platform.dms)
	assert.Empty(t, platform.rolesAdded)
	assert.Empty(t, platform.finalized, "the prompt must stay actionable")
}

func TestMemberLookupBackendError(t *testing.T) {
	platform := newFakePlatform()
	platform.memberErr = errors.New("gateway timeout")
	h, _ := newHandler(t, platform)

	err := h.Handle(nil, click("accept:U1", "M1"))
	require.Error(t, err)
	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "An error occurred")
	assert.NotContains(t, platform.followUps[0], "Could not find user")
	assert.Empty(t, platform.rolesAdded)
	assert.Empty(t, platform.finalized)
}

func TestAcceptRoleMissing(t *testing.T) {
	platform := newFakePlatform()
	delete(platform.roles, acceptedRoleID)
	h, _ := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))

	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "role was not found")
	assert.Empty(t, platform.rolesAdded)
	assert.Empty(t, platform.dms)
	assert.Empty(t, platform.finalized)
}

func TestAcceptAddRoleFails(t *testing.T) {
	platform := newFakePlatform()
	platform.addRoleErr = errors.New("missing permissions")
	h, _ := newHandler(t, platform)

	require.Error(t, h.Handle(nil, click("accept:U1", "M1")))

	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "role hierarchy")
	assert.Empty(t, platform.dms)
	assert.Empty(t, platform.finalized)
}

func TestAcceptDirectMessagesDisabled(t *testing.T) {
	platform := newFakePlatform()
	platform.dmErr = fmt.Errorf("fake: %w", discord.ErrDirectMessagesDisabled)
	h, db := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))

	assert.Len(t, platform.rolesAdded, 1, "the grant stays applied")
	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "Could not send a DM to annx")
	require.Len(t, platform.finalized, 1)
	assert.Contains(t, platform.finalized[0], "**Accepted** annx")
	assert.Contains(t, platform.finalized[0], "could not be delivered")

	record := decisionRecord(t, db, "M1")
	assert.True(t, record.RoleGranted)
	assert.False(t, record.Notified)
}

func TestDenyDirectMessagesDisabled(t *testing.T) {
	platform := newFakePlatform()
	platform.dmErr = fmt.Errorf("fake: %w", discord.ErrDirectMessagesDisabled)
	h, _ := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("deny:U1", "M1")))

	require.Len(t, platform.followUps, 1)
	require.Len(t, platform.finalized, 1)
	assert.Contains(t, platform.finalized[0], "**Denied** annx")
	assert.NotContains(t, platform.finalized[0], "has been sent")
}

func TestDMUnexpectedError(t *testing.T) {
	platform := newFakePlatform()
	platform.dmErr = errors.New("rate limited by discord")
	h, _ := newHandler(t, platform)

	require.Error(t, h.Handle(nil, click("deny:U1", "M1")))

	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "An error occurred")
	assert.Empty(t, platform.finalized)
}

func TestForeignTokensIgnored(t *testing.T) {
	platform := newFakePlatform()
	h, _ := newHandler(t, platform)

	for _, customID := range []string{"approve:U1", "accept:", "ping", "deny:U1:x"} {
		require.NoError(t, h.Handle(nil, click(customID, "M1")))
	}
	require.NoError(t, h.Handle(nil, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: "ping"},
	}}))
	require.NoError(t, h.Handle(nil, nil))

	assert.Empty(t, platform.calls, "foreign interactions must not even be acknowledged")
}

func TestNonStaffRefused(t *testing.T) {
	platform := newFakePlatform()
	h, _ := newHandler(t, platform)
	i := click("accept:U1", "M1")
	i.Member.Permissions = discordgo.PermissionViewChannel

	require.NoError(t, h.Handle(nil, i))

	assert.Equal(t, []string{"ack", "followup"}, platform.calls)
	assert.Contains(t, platform.followUps[0], "permission")
}

func TestAcknowledgeFails(t *testing.T) {
	platform := newFakePlatform()
	platform.ackErr = errors.New("unknown interaction")
	h, _ := newHandler(t, platform)

	require.Error(t, h.Handle(nil, click("accept:U1", "M1")))
	assert.Equal(t, []string{"ack"}, platform.calls)
}

func TestConflictingDecision(t *testing.T) {
	platform := newFakePlatform()
	h, _ := newHandler(t, platform)

	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))
	require.NoError(t, h.Handle(nil, click("deny:U1", "M1")))

	assert.Equal(t, 1, count(platform.calls, "dm"))
	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "already accepted")
}

func TestFinalizeFails(t *testing.T) {
	platform := newFakePlatform()
	platform.finalizeErr = errors.New("unknown message")
	h, _ := newHandler(t, platform)

	require.Error(t, h.Handle(nil, click("deny:U1", "M1")))
	assert.Len(t, platform.dms, 1)
}

func TestDenyDMFailureLeavesPromptOpen(t *testing.T) {
	platform := newFakePlatform()
	platform.dmErr = errors.New("internal server error")
	h, db := newHandler(t, platform)

	require.Error(t, h.Handle(nil, click("deny:U1", "M1")))
	exists, err := db.NewSelect().Model((*model.Decision)(nil)).Where("message_id = ?", "M1").Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists, "a deny that notified nobody is not recorded")

	platform.dmErr = nil
	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))

	assert.Equal(t, []string{"U1/" + acceptedRoleID}, platform.rolesAdded)
	require.Len(t, platform.finalized, 1)
	assert.Contains(t, platform.finalized[0], "**Accepted** annx")
	for _, followUp := range platform.followUps {
		assert.NotContains(t, followUp, "already denied")
	}
	assert.Equal(t, model.DECISION_ACTION_ACCEPT, decisionRecord(t, db, "M1").Action)
}

func TestConcurrentClicksOnOnePrompt(t *testing.T) {
	platform := newFakePlatform()
	platform.dmReached = make(chan struct{}, 1)
	platform.dmGate = make(chan struct{})
	h, _ := newHandler(t, platform)

	done := make(chan error, 1)
	go func() { done <- h.Handle(nil, click("accept:U1", "M1")) }()
	<-platform.dmReached

	// second click while the first one is still sending the DM
	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))
	close(platform.dmGate)
	require.NoError(t, <-done)

	assert.Equal(t, 1, count(platform.calls, "addrole"))
	assert.Equal(t, 1, count(platform.calls, "dm"))
	require.Len(t, platform.followUps, 1)
	assert.Contains(t, platform.followUps[0], "already being processed")
	assert.Len(t, platform.finalized, 1)

	// the claim is released once the first click is done
	platform.dmReached = nil
	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))
	assert.Equal(t, 1, count(platform.calls, "dm"))
	assert.Len(t, platform.finalized, 2)
}

func TestTournamentNameIsTidied(t *testing.T) {
	platform := newFakePlatform()
	h := handler.NewDecisionHandler(platform, newDB(t), nil, handler.DecisionConfig{
		AcceptedRoleID: acceptedRoleID,
		TournamentName: "  minecraft esport tournament. ",
	})

	require.NoError(t, h.Handle(nil, click("accept:U1", "M1")))
	require.Len(t, platform.dms, 1)
	assert.Contains(t, platform.dms[0].embed.Description, "the **Minecraft Esport Tournament** has been")
}
