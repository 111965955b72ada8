package discord

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"pokebot/internal/flow"
	"pokebot/internal/game"
)

const spriteName = "pokemon.gif"

// Sprites opens species gifs under a root directory.
type Sprites struct {
	Root string
}

// Open returns the gif at rel, e.g. "shiny/25-0.gif".
func (s Sprites) Open(rel string) (io.ReadCloser, error) {
	clean := filepath.Clean("/" + rel)
	return os.Open(filepath.Join(s.Root, clean))
}

// attach adds the sprite at rel to data as the embed image. The returned
// close func must run after the message is sent. A missing sprite leaves the
// embed without an image.
func (s Sprites) attach(data *discordgo.MessageSend, rel string) (func(), error) {
	if s.Root == "" {
		return func() {}, nil
	}
	f, err := s.Open(rel)
	if err != nil {
		return func() {}, err
	}
	data.Files = append(data.Files, &discordgo.File{Name: spriteName, ContentType: "image/gif", Reader: f})
	for _, e := range data.Embeds {
		e.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + spriteName}
	}
	return func() { _ = f.Close() }, nil
}

func statsField(st game.Stats) *discordgo.MessageEmbedField {
	lines := make([]string, len(game.AllStats))
	for i, s := range game.AllStats {
		lines[i] = fmt.Sprintf("**%s:** %d", s.Label(), st.Get(s))
	}
	return &discordgo.MessageEmbedField{Name: "Statistics", Value: strings.Join(lines, "\n"), Inline: true}
}

func evolutionsField(chain string) *discordgo.MessageEmbedField {
	if chain == "" {
		chain = "None"
	}
	return &discordgo.MessageEmbedField{Name: "Evolutions", Value: chain, Inline: true}
}

func cardEmbed(card flow.Card) *discordgo.MessageEmbed {
	f := card.Found
	desc := []string{
		fmt.Sprintf("**Level %d** %s", card.Level, card.Bar),
		fmt.Sprintf("Exp: %d/%d", card.ExpCurrent, card.ExpNeeded),
		fmt.Sprintf("Nature: %s", f.Nature.Name),
		fmt.Sprintf("Ball: %s", f.Ball),
	}
	if f.PartyPosition != nil {
		desc = append(desc, fmt.Sprintf("Party slot: %d", *f.PartyPosition+1))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("#%d %s", f.Species.Num, strings.ReplaceAll(f.DisplayName()+f.Species.Star()+f.Sparkle(), `\`, "")),
		Description: strings.Join(desc, "\n"),
		Color:       card.Color,
		Fields:      []*discordgo.MessageEmbedField{statsField(card.Stats), evolutionsField(card.Evolutions)},
	}
}

func dexEmbed(e flow.DexEntry) *discordgo.MessageEmbed {
	sp := e.Species
	title := fmt.Sprintf("#%d %s", sp.Num, sp.DisplayName())
	if e.Shiny {
		title += " ✨"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("**Type:** %s\n**Rarity:** %s", strings.Join(sp.Types, "/"), sp.Rarity()),
		Color:       e.Color,
		Fields:      []*discordgo.MessageEmbedField{statsField(sp.Base), evolutionsField(e.Evolutions)},
	}
}

func inventoryEmbed(v flow.InventoryView) *discordgo.MessageEmbed {
	lines := []string{fmt.Sprintf("**Money:** %d%s", v.Money, game.Currency)}
	for _, l := range v.Lines {
		lines = append(lines, fmt.Sprintf("**%s:** %d", l.Item, l.Count))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s's Inventory", v.Player.Name),
		Description: strings.Join(lines, "\n"),
		Color:       0xE3350D,
	}
}

func wildEmbed(w flow.Wild, text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: text,
		Color:       w.Color,
	}
}
