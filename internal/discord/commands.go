package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"pokebot/internal/flow"
	"pokebot/internal/game"
)

func (b *Bot) commands() []*Command {
	return []*Command{
		{Name: "pokemon", Aliases: []string{"pokemen", "pokermon", "digimon"}, Gated: true, Cooldown: b.opts.EncounterCooling, Run: b.cmdPokemon},
		{Name: "pc", Gated: true, Run: b.cmdPC},
		{Name: "pc info", Gated: true, Run: b.cmdPCInfo},
		{Name: "party", Gated: true, Run: b.cmdParty},
		{Name: "pokedex", Aliases: []string{"dex"}, Gated: true, Run: b.cmdPokedex},
		{Name: "pokedex shiny", Aliases: []string{"dex shiny"}, Gated: true, Run: b.cmdPokedexShiny},
		{Name: "shop", Gated: true, Run: b.cmdShop},
		{Name: "shop sell", Gated: true, Run: b.cmdSell},
		{Name: "inventory", Aliases: []string{"inv", "bag"}, Gated: true, Run: b.cmdInventory},
		{Name: "reward", Gated: true, Cooldown: b.opts.RewardCooling, Run: b.cmdReward},
		{Name: "trade", Gated: true, Run: b.cmdTrade},
		{Name: "plonk", Admin: true, Run: b.cmdPlonk},
		{Name: "unplonk", Admin: true, Run: b.cmdUnplonk},
		{Name: "uptime", Keep: true, Run: b.cmdUptime},
		{Name: "playing", Owner: true, Run: b.cmdPlaying},
	}
}

func (b *Bot) cmdPokemon(ctx context.Context, req *Request) error {
	view := b.ui(req).encounter(req.Player())
	res, err := b.game.Encounter(ctx, req.Invocation(), view)
	if err != nil {
		view.cancel()
		_ = view.view.Close()
		return err
	}
	view.finish(res.Message())
	return nil
}

// owner is the mentioned member, or the author when nobody is mentioned.
func owner(req *Request) flow.Player {
	if p, ok := req.Mentioned(); ok {
		return p
	}
	return req.Player()
}

func (b *Bot) cmdPC(ctx context.Context, req *Request) error {
	return b.game.PC(ctx, req.Invocation(), owner(req), b.ui(req))
}

func (b *Bot) cmdPCInfo(ctx context.Context, req *Request) error {
	if req.Args == "" {
		req.Reply(fmt.Sprintf("Usage: **%spc info** ``name``, ``number`` or ``stat > value``", b.router.cfg.Prefix))
		return nil
	}
	u := b.ui(req)
	view := u.info(req.Player())
	defer view.Close()
	return b.game.PCInfo(ctx, req.Invocation(), req.Args, u, view)
}

func (b *Bot) cmdParty(ctx context.Context, req *Request) error {
	p := req.Player()
	return b.game.Party(ctx, req.Invocation(), &partyView{u: b.ui(req), userID: formatID(p.ID)})
}

func (b *Bot) cmdPokedex(ctx context.Context, req *Request) error {
	if p, ok := req.Mentioned(); ok {
		return b.game.Pokedex(ctx, req.Invocation(), p, b.ui(req))
	}
	if req.Args == "" {
		return b.game.Pokedex(ctx, req.Invocation(), req.Player(), b.ui(req))
	}
	return b.dexEntry(ctx, req, req.Args, false)
}

func (b *Bot) cmdPokedexShiny(ctx context.Context, req *Request) error {
	if req.Args == "" {
		req.Reply(fmt.Sprintf("Usage: **%spokedex shiny** ``name`` or ``number``", b.router.cfg.Prefix))
		return nil
	}
	return b.dexEntry(ctx, req, req.Args, true)
}

func (b *Bot) dexEntry(ctx context.Context, req *Request, query string, shiny bool) error {
	entry, err := b.game.PokedexEntry(ctx, req.Invocation(), query, shiny)
	if err != nil {
		return err
	}
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{dexEmbed(entry)}}
	return b.sendWithSprite(req, data, entry.Image)
}

func (b *Bot) sendWithSprite(req *Request, data *discordgo.MessageSend, image string) error {
	closeSprite, err := Sprites{Root: b.opts.ImageRoot}.attach(data, image)
	if err != nil {
		req.Log.Warn("sprite unavailable", "image", image, "err", err)
	}
	defer closeSprite()
	msg, err := req.Session.ChannelMessageSendComplex(req.Message.ChannelID, data)
	if err != nil {
		return err
	}
	deleteLater(req.Session, msg.ChannelID, msg.ID, req.deleteAfter)
	return nil
}

func (b *Bot) cmdShop(ctx context.Context, req *Request) error {
	multiple := 1
	if req.Args != "" {
		n, err := strconv.Atoi(req.Args)
		if err != nil || n < 1 {
			req.Reply("The quantity must be a positive number.")
			return nil
		}
		multiple = n
	}
	res, err := b.game.Purchase(ctx, req.Invocation(), b.ui(req), multiple)
	if err != nil || res.Cancelled {
		return err
	}
	req.Reply(res.Message())
	return nil
}

func (b *Bot) cmdSell(ctx context.Context, req *Request) error {
	res, err := b.game.Sell(ctx, req.Invocation(), b.ui(req))
	if err != nil || res.Cancelled {
		return err
	}
	req.Reply(res.Message())
	return nil
}

func (b *Bot) cmdInventory(ctx context.Context, req *Request) error {
	view, err := b.game.Inventory(ctx, req.Invocation())
	if err != nil {
		return err
	}
	msg, err := req.Session.ChannelMessageSendComplex(req.Message.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{inventoryEmbed(view)},
	})
	if err != nil {
		return err
	}
	deleteLater(req.Session, msg.ChannelID, msg.ID, req.deleteAfter)
	return nil
}

func (b *Bot) cmdReward(ctx context.Context, req *Request) error {
	res, err := b.game.ClaimReward(ctx, req.Invocation())
	if err != nil {
		return err
	}
	req.Reply(res.Message())
	return nil
}

func (b *Bot) cmdTrade(ctx context.Context, req *Request) error {
	partner, ok := req.Mentioned()
	if !ok {
		req.Reply(fmt.Sprintf("Usage: **%strade** ``@member``", b.router.cfg.Prefix))
		return nil
	}
	u := b.ui(req)
	res, err := b.game.Trade(ctx, req.Invocation(), partner, u, u)
	if err != nil {
		return err
	}
	req.Reply(res.Message())
	return nil
}

// guildTarget resolves the guild and mentioned member of an admin command.
func guildTarget(req *Request) (int64, int64, bool) {
	guildID, err := parseID(req.Message.GuildID)
	if err != nil {
		return 0, 0, false
	}
	p, ok := req.Mentioned()
	if !ok {
		return 0, 0, false
	}
	return guildID, p.ID, true
}

func (b *Bot) cmdPlonk(ctx context.Context, req *Request) error {
	guildID, userID, ok := guildTarget(req)
	if !ok {
		req.Reply("Mention the member to plonk.")
		return nil
	}
	err := b.plonks.Plonk(ctx, guildID, userID)
	if errors.Is(err, game.ErrAlreadyPlonked) {
		req.Reply("User is already plonked.")
		return nil
	}
	if err != nil {
		return err
	}
	req.Log.Info("user plonked", "guild_id", guildID, "target_id", userID)
	req.Reply("User has been plonked.")
	return nil
}

func (b *Bot) cmdUnplonk(ctx context.Context, req *Request) error {
	guildID, userID, ok := guildTarget(req)
	if !ok {
		req.Reply("Mention the member to unplonk.")
		return nil
	}
	removed, err := b.plonks.Unplonk(ctx, guildID, userID)
	if err != nil {
		return err
	}
	if !removed {
		req.Reply("User is not plonked.")
		return nil
	}
	req.Log.Info("user unplonked", "guild_id", guildID, "target_id", userID)
	req.Reply("User is no longer plonked.")
	return nil
}

func (b *Bot) cmdUptime(_ context.Context, req *Request) error {
	req.Reply("Uptime: " + uptimeText(b.uptime()))
	return nil
}

func uptimeText(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("**%d days, %d hours, %d minutes, and %d seconds**", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("**%d hours, %d minutes, and %d seconds**", hours, minutes, seconds)
}

func (b *Bot) cmdPlaying(_ context.Context, req *Request) error {
	status := strings.TrimSpace(req.Args)
	if err := req.Session.UpdateGameStatus(0, status); err != nil {
		return err
	}
	req.Log.Info("status updated", "status", status)
	return nil
}
