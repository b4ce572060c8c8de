package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"idlewatch/internal/models"
	"idlewatch/internal/telemetry"
	"idlewatch/pkg/utils"
)

// maxMessageLen is Discord's message length limit.
const maxMessageLen = 2000

// activityStore is what the bot needs from the activity repository.
type activityStore interface {
	UpsertActivity(userID string, t time.Time) error
	GetLastActive(userID string) (time.Time, bool, error)
	ListLeastActive(limit int) ([]models.ActivityRecord, error)
}

// commandAPI is the slice of the Discord session the command handlers use.
type commandAPI interface {
	memberLister
	UserChannelPermissions(userID string, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot represents the Discord bot
type Bot struct {
	session *discordgo.Session
	store   activityStore
	prefix  string
	log     zerolog.Logger
}

// New creates a new Discord bot
func New(token string, store activityStore, prefix string, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates

	bot := &Bot{
		session: session,
		store:   store,
		prefix:  prefix,
		log:     log,
	}

	// Add event handlers
	session.AddHandler(bot.messageCreate)
	session.AddHandler(bot.voiceStateUpdate)

	return bot, nil
}

// Start starts the bot
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	b.log.Info().Msg("bot is running")
	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	return b.session.Close()
}

// Session returns the underlying Discord session
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// messageCreate records the author's activity and routes prefix commands
func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	if err := b.store.UpsertActivity(m.Author.ID, time.Now().UTC()); err != nil {
		b.log.Error().Err(err).Str("user_id", m.Author.ID).Msg("failed to record message activity")
	} else {
		telemetry.IncActivityEvent("message")
	}

	b.dispatchCommand(s, m)
}

// voiceStateUpdate records activity when a member enters, leaves, or switches
// voice channels. Updates that only change mute or deafen state are ignored.
func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if isBotVoiceUser(s, vs) {
		return
	}

	var before string
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}
	if vs.ChannelID == before {
		return
	}

	if err := b.store.UpsertActivity(vs.UserID, time.Now().UTC()); err != nil {
		b.log.Error().Err(err).Str("user_id", vs.UserID).Msg("failed to record voice activity")
	} else {
		telemetry.IncActivityEvent("voice")
	}
}

func isBotVoiceUser(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) bool {
	member := vs.Member
	if member == nil && s != nil {
		member, _ = s.State.Member(vs.GuildID, vs.UserID)
	}
	return member != nil && member.User != nil && member.User.Bot
}

// dispatchCommand routes prefix commands from a freshly recorded message
func (b *Bot) dispatchCommand(api commandAPI, m *discordgo.MessageCreate) {
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, b.prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(content, b.prefix))
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "ping":
		b.handlePing(api, m)
	case "mark_active":
		if b.isAdmin(api, m) {
			b.handleMarkActive(api, m)
		}
	case "last_actives":
		if b.isAdmin(api, m) {
			b.handleLastActives(api, m, fields[1:])
		}
	}
}

// isAdmin reports whether the message author has the administrator permission
// in the invoking channel. Non-admin invocations are silently ignored.
func (b *Bot) isAdmin(api commandAPI, m *discordgo.MessageCreate) bool {
	perms, err := api.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", m.Author.ID).Msg("failed to resolve permissions")
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// handlePing handles the ping command
func (b *Bot) handlePing(api commandAPI, m *discordgo.MessageCreate) {
	api.ChannelMessageSend(m.ChannelID, "Pong! Bot is working.")
}

// handleMarkActive marks every non-bot member of the invoking guild as
// active now, paging through the full member list
func (b *Bot) handleMarkActive(api commandAPI, m *discordgo.MessageCreate) {
	now := time.Now().UTC()
	err := forEachGuildMember(api, m.GuildID, memberPageSize, func(member *discordgo.Member) {
		if member.User == nil || member.User.Bot {
			return
		}
		if err := b.store.UpsertActivity(member.User.ID, now); err != nil {
			b.log.Error().Err(err).Str("user_id", member.User.ID).Msg("failed to mark member active")
		}
	})
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", m.GuildID).Msg("failed to list guild members")
		return
	}

	api.ChannelMessageSend(m.ChannelID, "✅ All members have been marked as active.")
}

// handleLastActives replies with the least recently active users
func (b *Bot) handleLastActives(api commandAPI, m *discordgo.MessageCreate, args []string) {
	records, err := b.store.ListLeastActive(parseLimit(args))
	if err != nil {
		b.log.Error().Err(err).Msg("failed to list least active users")
		return
	}

	api.ChannelMessageSend(m.ChannelID, renderLastActives(records))
}

// parseLimit reads an optional positive limit argument, defaulting to 10
func parseLimit(args []string) int {
	if len(args) == 0 {
		return 10
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

func renderLastActives(records []models.ActivityRecord) string {
	var sb strings.Builder
	sb.WriteString("UserID | Last Active\n")
	for _, rec := range records {
		fmt.Fprintf(&sb, "%d | %s\n", rec.UserID, rec.LastActive.Format(time.RFC3339))
	}
	// Truncate before fencing so the closing backticks survive.
	return utils.CodeBlock(utils.TruncateString(sb.String(), maxMessageLen-8))
}
