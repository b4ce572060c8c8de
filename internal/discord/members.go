package discord

import "github.com/bwmarrin/discordgo"

// memberPageSize is Discord's maximum page size for member listing.
const memberPageSize = 1000

// memberLister pages through a guild's members over REST.
type memberLister interface {
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// forEachGuildMember walks a guild's complete member list in pages, calling
// fn for every member. The gateway state cache is deliberately not used:
// for large guilds it only holds the partial list delivered on GuildCreate.
func forEachGuildMember(api memberLister, guildID string, pageSize int, fn func(*discordgo.Member)) error {
	after := ""
	for {
		members, err := api.GuildMembers(guildID, after, pageSize)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		for _, member := range members {
			fn(member)
		}
		last := members[len(members)-1]
		if last.User == nil || len(members) < pageSize {
			return nil
		}
		after = last.User.ID
	}
}
