package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"pokebot/internal/api"
	cl "pokebot/internal/cli"
	"pokebot/internal/flow"
	"pokebot/internal/game"
	"pokebot/internal/store"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptDefault(label, defaultValue string) (string, error) {
	fmt.Printf("%s [%s]: ", label, defaultValue)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return defaultValue, nil
	}
	return text, nil
}

func renderHealth(h cl.Health, err error) {
	accent.Println("\n== BOT HEALTH ==")
	if err != nil {
		printError(err.Error())
		fmt.Println()
		return
	}
	fmt.Printf("Database:  %s\n", okText(h.OK))
	fmt.Printf("Catalog:   %s\n", okText(h.CatalogLoaded))
	if h.Error != "" {
		fmt.Printf("Error:     %s\n", h.Error)
	}
	fmt.Println()
}

func okText(ok bool) string {
	if ok {
		return success.Sprint("ok")
	}
	return danger.Sprint("down")
}

func renderEvents(r cl.EventReport) {
	accent.Printf("\n== EVENTS SINCE %s ==\n", r.Since.Local().Format("2006-01-02 15:04"))
	if len(r.Events) == 0 {
		printInfo("No events recorded.")
		return
	}
	fmt.Printf("%-28s %10s\n", "EVENT", "COUNT")
	for _, e := range r.Events {
		fmt.Printf("%-28s %10s\n", truncate(e.Event, 28), comma(e.Count))
	}
	fmt.Printf("%-28s %10s\n", "TOTAL", comma(r.Total))
	fmt.Println()
}

func renderSpecies(v api.SpeciesView) {
	accent.Printf("\n== #%d %s ==\n", v.Num, v.Name)
	fmt.Printf("Types:      %s\n", strings.Join(v.Types, ", "))
	fmt.Printf("Rarity:     %s\n", v.Rarity)
	fmt.Printf("Color:      #%06X\n", v.Color)
	fmt.Printf("XP yield:   %d\n", v.XPYield)
	renderStats(v.Base)
	if v.Evolutions != "" {
		fmt.Printf("Evolutions: %s\n", v.Evolutions)
	}
	fmt.Printf("Sprite:     %s\n", v.Image)
	fmt.Println()
}

func renderDexEntry(sp game.Species, colour int, chain string) {
	renderSpecies(api.SpeciesView{
		Num:        sp.Num,
		FormID:     sp.FormID,
		Name:       sp.DisplayName(),
		Types:      sp.Types,
		Rarity:     sp.Rarity(),
		Base:       sp.Base,
		XPYield:    sp.XPYield,
		Color:      colour,
		Evolutions: strings.ReplaceAll(chain, `\`, ""),
		Image:      game.ImagePath(false, sp.Num, 0),
	})
}

func renderYield(a flow.YieldAward) {
	accent.Printf("\n== POKEMON %d ==\n", a.ID)
	fmt.Printf("Gained:  %s exp\n", comma(int64(a.Gained)))
	fmt.Printf("Total:   %s exp (level %d)\n", comma(int64(a.Exp)), a.Level)
	fmt.Printf("EVs:     HP %d  Atk %d  Def %d  SpA %d  SpD %d  Spe %d\n",
		a.EV.HP, a.EV.Attack, a.EV.Defense, a.EV.SpAttack, a.EV.SpDefense, a.EV.Speed)
	if a.EvolvedTo != 0 {
		printSuccess(fmt.Sprintf("Evolved into #%d!", a.EvolvedTo))
	}
	fmt.Println()
}

func renderStats(s game.Stats) {
	fmt.Printf("Base stats: HP %d  Atk %d  Def %d  SpA %d  SpD %d  Spe %d\n",
		s.HP, s.Attack, s.Defense, s.SpAttack, s.SpDefense, s.Speed)
}

func renderTrainer(t store.TrainerSummary) {
	accent.Printf("\n== TRAINER %d ==\n", t.UserID)
	fmt.Printf("Owned:  %d\n", t.Owned)
	fmt.Printf("Party:  %d\n", t.Party)
	fmt.Printf("Seen:   %d\n", t.Seen)
	renderInventory(t.Inventory)
}

func renderInventory(inv map[string]int) {
	fmt.Println()
	accent.Println("Inventory")
	fmt.Printf("Money: %s\n", comma(int64(inv[game.MoneyKey])))
	var names []string
	for _, k := range game.Inventory(inv).Keys() {
		if k != game.MoneyKey && inv[k] != 0 {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		printInfo("No items.")
	}
	for _, k := range names {
		fmt.Printf("%-20s %6d\n", truncate(k, 20), inv[k])
	}
	fmt.Println()
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
