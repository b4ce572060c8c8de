package discord

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"idlewatch/internal/telemetry"
)

// Audit log reasons for marker-role mutations.
const (
	roleCreateReason = "Inactive role created"
	roleGrantReason  = "Inactive for 30+ days"
	roleRevokeReason = "User is active again"
)

// guildAPI is the slice of the Discord REST surface the reconciler works
// through: role resolution and mutation plus full member listing.
type guildAPI interface {
	memberLister
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// lastActiveReader is what the reconciler needs from the activity repository.
type lastActiveReader interface {
	GetLastActive(userID string) (time.Time, bool, error)
}

// Reconciler periodically grants the marker role to members whose last
// observed activity is older than the inactivity window, and revokes it from
// members who have been active again since.
type Reconciler struct {
	api      guildAPI
	state    *discordgo.State
	store    lastActiveReader
	roleName string
	window   time.Duration
	interval time.Duration
	pageSize int
	log      zerolog.Logger
}

// NewReconciler creates a reconciler bound to the given session
func NewReconciler(session *discordgo.Session, store lastActiveReader, roleName string, window, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		api:      session,
		state:    session.State,
		store:    store,
		roleName: roleName,
		window:   window,
		interval: interval,
		pageSize: memberPageSize,
		log:      log,
	}
}

// Start runs one pass immediately and then on every interval tick until the
// context is cancelled. A pass in flight is not interrupted mid-guild.
func (r *Reconciler) Start(ctx context.Context) {
	r.log.Info().
		Dur("interval", r.interval).
		Dur("window", r.window).
		Str("role", r.roleName).
		Msg("inactivity reconciler starting")

	r.runPass(time.Now().UTC())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("inactivity reconciler stopped")
			return
		case <-ticker.C:
			r.runPass(time.Now().UTC())
		}
	}
}

// runPass evaluates every guild the bot belongs to against a single cutoff.
// Guild IDs are snapshotted under the state lock; the gateway goroutine
// mutates the guild list concurrently.
func (r *Reconciler) runPass(now time.Time) {
	telemetry.IncReconcilePass()
	cutoff := now.Add(-r.window)

	r.state.RLock()
	guildIDs := make([]string, 0, len(r.state.Guilds))
	for _, guild := range r.state.Guilds {
		guildIDs = append(guildIDs, guild.ID)
	}
	r.state.RUnlock()

	for _, guildID := range guildIDs {
		r.reconcileGuild(guildID, cutoff)
	}
}

func (r *Reconciler) reconcileGuild(guildID string, cutoff time.Time) {
	roleID, err := r.resolveRole(guildID)
	if err != nil {
		// Skip this guild, the rest of the pass continues.
		r.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to resolve inactive role")
		return
	}

	err = forEachGuildMember(r.api, guildID, r.pageSize, func(member *discordgo.Member) {
		r.reconcileMember(guildID, member, roleID, cutoff)
	})
	if err != nil {
		r.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to list guild members")
	}
}

// resolveRole finds the marker role by name, creating it if the guild does
// not have one yet. The role is re-resolved every pass rather than cached.
func (r *Reconciler) resolveRole(guildID string) (string, error) {
	roles, err := r.api.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.Name == r.roleName {
			return role.ID, nil
		}
	}

	role, err := r.api.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: r.roleName},
		discordgo.WithAuditLogReason(roleCreateReason))
	if err != nil {
		return "", err
	}
	r.log.Info().Str("guild_id", guildID).Str("role_id", role.ID).Msg("created inactive role")
	return role.ID, nil
}

func (r *Reconciler) reconcileMember(guildID string, member *discordgo.Member, roleID string, cutoff time.Time) {
	if member.User == nil || member.User.Bot {
		return
	}
	userID := member.User.ID

	lastActive, seen, err := r.store.GetLastActive(userID)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("failed to read last activity")
		return
	}

	hasRole := slices.Contains(member.Roles, roleID)

	switch decide(lastActive, seen, hasRole, cutoff) {
	case actionGrant:
		if seen {
			r.log.Info().Str("user_id", userID).Time("last_active", lastActive).Msg("marking member inactive")
		} else {
			r.log.Info().Str("user_id", userID).Msg("marking never-seen member inactive")
		}
		if err := r.api.GuildMemberRoleAdd(guildID, userID, roleID,
			discordgo.WithAuditLogReason(roleGrantReason)); err != nil {
			r.logRoleError(err, "add", guildID, userID)
		} else {
			telemetry.IncRoleGranted()
		}
	case actionRevoke:
		r.log.Info().Str("user_id", userID).Time("last_active", lastActive).Msg("removing inactive marker")
		if err := r.api.GuildMemberRoleRemove(guildID, userID, roleID,
			discordgo.WithAuditLogReason(roleRevokeReason)); err != nil {
			r.logRoleError(err, "remove", guildID, userID)
		} else {
			telemetry.IncRoleRevoked()
		}
	}
}

type roleAction int

const (
	actionNone roleAction = iota
	actionGrant
	actionRevoke
)

// decide applies the inactivity transition table for a single member.
// A member that has never been observed counts as inactive.
func decide(lastActive time.Time, seen, hasRole bool, cutoff time.Time) roleAction {
	inactive := !seen || lastActive.Before(cutoff)
	switch {
	case inactive && !hasRole:
		return actionGrant
	case !inactive && hasRole:
		return actionRevoke
	default:
		return actionNone
	}
}

// logRoleError reports a failed role mutation. Permission failures are
// expected when the bot's role sits below a member's and only warrant a
// warning; the pass continues either way.
func (r *Reconciler) logRoleError(err error, op, guildID, userID string) {
	telemetry.IncRoleError()

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == discordgo.ErrCodeMissingPermissions {
		r.log.Warn().
			Str("op", op).
			Str("guild_id", guildID).
			Str("user_id", userID).
			Msg("missing permission for role change")
		return
	}

	r.log.Error().Err(err).
		Str("op", op).
		Str("guild_id", guildID).
		Str("user_id", userID).
		Msg("role change failed")
}
