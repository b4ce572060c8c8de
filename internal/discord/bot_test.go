package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlewatch/internal/models"
)

type fakeStore struct {
	upserts map[string]time.Time
	seen    map[string]time.Time
	listed  []models.ActivityRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		upserts: make(map[string]time.Time),
		seen:    make(map[string]time.Time),
	}
}

func (f *fakeStore) UpsertActivity(userID string, t time.Time) error {
	f.upserts[userID] = t
	f.seen[userID] = t
	return nil
}

func (f *fakeStore) GetLastActive(userID string) (time.Time, bool, error) {
	t, ok := f.seen[userID]
	return t, ok, nil
}

func (f *fakeStore) ListLeastActive(limit int) ([]models.ActivityRecord, error) {
	if limit < len(f.listed) {
		return f.listed[:limit], nil
	}
	return f.listed, nil
}

func newTestBot(store *fakeStore) *Bot {
	return &Bot{store: store, prefix: "!", log: zerolog.Nop()}
}

func TestMessageCreateRecordsActivity(t *testing.T) {
	store := newFakeStore()
	bot := newTestBot(store)

	bot.messageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "42"},
		Content: "hello there",
	}})

	require.Contains(t, store.upserts, "42")
}

func TestMessageCreateSkipsBots(t *testing.T) {
	store := newFakeStore()
	bot := newTestBot(store)

	bot.messageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "77", Bot: true},
		Content: "automated noise",
	}})

	assert.Empty(t, store.upserts)
}

func TestVoiceStateUpdate(t *testing.T) {
	human := &discordgo.Member{User: &discordgo.User{ID: "42"}}

	t.Run("join records", func(t *testing.T) {
		store := newFakeStore()
		bot := newTestBot(store)

		bot.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
			VoiceState: &discordgo.VoiceState{UserID: "42", ChannelID: "v1", Member: human},
		})
		assert.Contains(t, store.upserts, "42")
	})

	t.Run("leave records", func(t *testing.T) {
		store := newFakeStore()
		bot := newTestBot(store)

		bot.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
			VoiceState:   &discordgo.VoiceState{UserID: "42", ChannelID: "", Member: human},
			BeforeUpdate: &discordgo.VoiceState{UserID: "42", ChannelID: "v1"},
		})
		assert.Contains(t, store.upserts, "42")
	})

	t.Run("channel switch records", func(t *testing.T) {
		store := newFakeStore()
		bot := newTestBot(store)

		bot.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
			VoiceState:   &discordgo.VoiceState{UserID: "42", ChannelID: "v2", Member: human},
			BeforeUpdate: &discordgo.VoiceState{UserID: "42", ChannelID: "v1"},
		})
		assert.Contains(t, store.upserts, "42")
	})

	t.Run("mute toggle does not record", func(t *testing.T) {
		store := newFakeStore()
		bot := newTestBot(store)

		bot.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
			VoiceState:   &discordgo.VoiceState{UserID: "42", ChannelID: "v1", SelfMute: true, Member: human},
			BeforeUpdate: &discordgo.VoiceState{UserID: "42", ChannelID: "v1"},
		})
		assert.Empty(t, store.upserts)
	})

	t.Run("bot member does not record", func(t *testing.T) {
		store := newFakeStore()
		bot := newTestBot(store)

		bot.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
			VoiceState: &discordgo.VoiceState{
				UserID:    "77",
				ChannelID: "v1",
				Member:    &discordgo.Member{User: &discordgo.User{ID: "77", Bot: true}},
			},
		})
		assert.Empty(t, store.upserts)
	})
}

type fakeCommandAPI struct {
	perms    int64
	permsErr error
	members  []*discordgo.Member
	sent     []string
}

func (f *fakeCommandAPI) GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	all := f.members
	start := 0
	if after != "" {
		for i, m := range all {
			if m.User != nil && m.User.ID == after {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeCommandAPI) UserChannelPermissions(userID string, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error) {
	return f.perms, f.permsErr
}

func (f *fakeCommandAPI) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{}, nil
}

func command(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:    &discordgo.User{ID: "42"},
		Content:   content,
		ChannelID: "c1",
		GuildID:   "g1",
	}}
}

func TestDispatchCommand(t *testing.T) {
	t.Run("ping needs no permissions", func(t *testing.T) {
		api := &fakeCommandAPI{}
		bot := newTestBot(newFakeStore())

		bot.dispatchCommand(api, command("!ping"))
		assert.Equal(t, []string{"Pong! Bot is working."}, api.sent)
	})

	t.Run("unknown command is ignored", func(t *testing.T) {
		api := &fakeCommandAPI{perms: discordgo.PermissionAdministrator}
		bot := newTestBot(newFakeStore())

		bot.dispatchCommand(api, command("!frobnicate"))
		assert.Empty(t, api.sent)
	})

	t.Run("bare prefix is ignored", func(t *testing.T) {
		api := &fakeCommandAPI{}
		bot := newTestBot(newFakeStore())

		bot.dispatchCommand(api, command("!   "))
		assert.Empty(t, api.sent)
	})

	t.Run("mark_active upserts every human member", func(t *testing.T) {
		api := &fakeCommandAPI{
			perms: discordgo.PermissionAdministrator,
			members: []*discordgo.Member{
				{User: &discordgo.User{ID: "1"}},
				{User: &discordgo.User{ID: "2"}},
				{User: &discordgo.User{ID: "3", Bot: true}},
			},
		}
		store := newFakeStore()
		bot := newTestBot(store)

		bot.dispatchCommand(api, command("!mark_active"))

		assert.Contains(t, store.upserts, "1")
		assert.Contains(t, store.upserts, "2")
		assert.NotContains(t, store.upserts, "3")
		assert.Equal(t, []string{"✅ All members have been marked as active."}, api.sent)
	})

	t.Run("mark_active is silently dropped for non-admins", func(t *testing.T) {
		api := &fakeCommandAPI{
			members: []*discordgo.Member{{User: &discordgo.User{ID: "1"}}},
		}
		store := newFakeStore()
		bot := newTestBot(store)

		bot.dispatchCommand(api, command("!mark_active"))

		assert.Empty(t, store.upserts)
		assert.Empty(t, api.sent)
	})

	t.Run("last_actives replies with the table", func(t *testing.T) {
		api := &fakeCommandAPI{perms: discordgo.PermissionAdministrator}
		store := newFakeStore()
		store.listed = []models.ActivityRecord{
			{UserID: 1, LastActive: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
		bot := newTestBot(store)

		bot.dispatchCommand(api, command("!last_actives 5"))

		require.Len(t, api.sent, 1)
		assert.Contains(t, api.sent[0], "1 | 2024-01-01T00:00:00Z")
	})

	t.Run("permission lookup failure counts as non-admin", func(t *testing.T) {
		api := &fakeCommandAPI{permsErr: assert.AnError}
		store := newFakeStore()
		bot := newTestBot(store)

		bot.dispatchCommand(api, command("!last_actives"))
		assert.Empty(t, api.sent)
	})
}

func TestForEachGuildMemberPages(t *testing.T) {
	api := &fakeCommandAPI{
		members: []*discordgo.Member{
			{User: &discordgo.User{ID: "1"}},
			{User: &discordgo.User{ID: "2"}},
			{User: &discordgo.User{ID: "3"}},
			{User: &discordgo.User{ID: "4"}},
			{User: &discordgo.User{ID: "5"}},
		},
	}

	var seen []string
	err := forEachGuildMember(api, "g1", 2, func(m *discordgo.Member) {
		seen = append(seen, m.User.ID)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, seen)
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 10, parseLimit(nil))
	assert.Equal(t, 10, parseLimit([]string{"zero"}))
	assert.Equal(t, 10, parseLimit([]string{"-3"}))
	assert.Equal(t, 5, parseLimit([]string{"5"}))
}

func TestRenderLastActives(t *testing.T) {
	records := []models.ActivityRecord{
		{UserID: 1, LastActive: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{UserID: 2, LastActive: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	got := renderLastActives(records)
	want := "```\nUserID | Last Active\n1 | 2024-01-01T00:00:00Z\n2 | 2024-01-02T00:00:00Z\n```"
	assert.Equal(t, want, got)
}
