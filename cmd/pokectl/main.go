package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cl "pokebot/internal/cli"
	"pokebot/internal/config"
	"pokebot/internal/db"
	"pokebot/internal/menu"
	"pokebot/internal/store"
	"pokebot/internal/termui"
)

type globals struct {
	adminURL string
	token    string
	dbURL    string
}

func main() {
	cfg := config.LoadCtlFromEnv()
	g := &globals{adminURL: cfg.AdminBaseURL, token: cfg.AdminToken, dbURL: cfg.DatabaseURL}

	root := &cobra.Command{
		Use:          "pokectl",
		Short:        "Admin client for the pokebot Discord bot",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.adminURL, "admin-url", g.adminURL, "base URL of the bot admin API")
	root.PersistentFlags().StringVar(&g.token, "token", g.token, "admin bearer token (defaults to the saved session)")
	root.PersistentFlags().StringVar(&g.dbURL, "database-url", g.dbURL, "Postgres URL for offline commands")

	root.AddCommand(
		newLoginCmd(g),
		newLogoutCmd(),
		newHealthCmd(g),
		newEventsCmd(g),
		newSpeciesCmd(g),
		newTrainerCmd(g),
		newGrantCmd(g),
		newYieldCmd(g),
		newPlonkCmd(g),
		newUnplonkCmd(g),
		newCatalogCmd(g),
		newDexCmd(g),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// client prefers explicit flags and env, then the saved session.
func (g *globals) client(cmd *cobra.Command) *cl.Client {
	base, token := g.adminURL, g.token
	if sess, err := cl.LoadSession(); err == nil {
		if token == "" {
			token = sess.Token
		}
		if !cmd.Flags().Changed("admin-url") && os.Getenv("POKECTL_ADMIN_URL") == "" && sess.AdminURL != "" {
			base = sess.AdminURL
		}
	}
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(base), "/"), token)
}

func newLoginCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save the admin URL and token",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := promptDefault("Admin URL", g.adminURL)
			if err != nil {
				return err
			}
			token, err := promptRequired("Admin token")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := cl.NewClient(base, token)
			if _, err := client.Events(ctx, time.Minute); err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}
			if err := cl.SaveSession(cl.Session{AdminURL: client.BaseURL, Token: token}); err != nil {
				return err
			}
			printSuccess("Login successful. Session saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newHealthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the bot's database and catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := g.client(cmd).Health(ctx)
			var se *cl.StatusError
			if err != nil && !errors.As(err, &se) {
				return err
			}
			renderHealth(h, err)
			return nil
		},
	}
}

func newEventsCmd(g *globals) *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show statistics events by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := g.client(cmd).Events(ctx, since)
			if err != nil {
				return err
			}
			renderEvents(out)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "window to count events over")
	return cmd
}

func newSpeciesCmd(g *globals) *cobra.Command {
	var shiny bool
	cmd := &cobra.Command{
		Use:   "species <name|number>",
		Short: "Look up a species in the live catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := g.client(cmd).Species(ctx, strings.Join(args, " "), shiny)
			if err != nil {
				return err
			}
			renderSpecies(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&shiny, "shiny", false, "show the shiny sprite path")
	return cmd
}

func newTrainerCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "trainer <user-id>",
		Short: "Show a trainer's inventory and collection counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := g.client(cmd).Trainer(ctx, id)
			if err != nil {
				return err
			}
			renderTrainer(out)
			return nil
		},
	}
}

func newGrantCmd(g *globals) *cobra.Command {
	var idem string
	cmd := &cobra.Command{
		Use:   "grant <user-id> <item=qty>...",
		Short: "Add (or with negative qty remove) items from a trainer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			delta, err := parseDelta(args[1:])
			if err != nil {
				return err
			}
			if idem == "" {
				idem = uuid.NewString()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			inv, err := g.client(cmd).Grant(ctx, id, delta, idem)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Granted to %d (grant %s).", id, idem))
			renderInventory(inv)
			return nil
		},
	}
	cmd.Flags().StringVar(&idem, "idempotency-key", "", "grant id recorded in the bot log")
	return cmd
}

func newYieldCmd(g *globals) *cobra.Command {
	var defeatedExp, participants int
	var wild bool
	cmd := &cobra.Command{
		Use:   "yield <pokemon-id> <defeated-num>",
		Short: "Credit a defeated species' EV and experience yield",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("pokemon id", args[0])
			if err != nil {
				return err
			}
			defeated, err := parseID("species number", args[1])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			award, err := g.client(cmd).Yield(ctx, id, int(defeated), defeatedExp, wild, participants)
			if err != nil {
				return err
			}
			renderYield(award)
			return nil
		},
	}
	cmd.Flags().IntVar(&defeatedExp, "exp", 0, "experience of the defeated creature")
	cmd.Flags().BoolVar(&wild, "wild", false, "the defeated creature was wild")
	cmd.Flags().IntVar(&participants, "participants", 1, "creatures sharing the experience")
	return cmd
}

func newPlonkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "plonk <guild-id> <user-id>",
		Short: "Blacklist a user in a guild",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, userID, err := parsePair(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := g.client(cmd).Plonk(ctx, guildID, userID); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Plonked %d in guild %d.", userID, guildID))
			return nil
		},
	}
}

func newUnplonkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unplonk <guild-id> <user-id>",
		Short: "Remove a user from a guild's blacklist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, userID, err := parsePair(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := g.client(cmd).Unplonk(ctx, guildID, userID); err != nil {
				var se *cl.StatusError
				if errors.As(err, &se) && se.Status == 404 {
					printWarn(fmt.Sprintf("%d was not plonked in guild %d.", userID, guildID))
					return nil
				}
				return err
			}
			printSuccess(fmt.Sprintf("Unplonked %d in guild %d.", userID, guildID))
			return nil
		},
	}
}

func newCatalogCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the bot's reference catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload reference tables without restarting the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			out, err := g.client(cmd).ReloadCatalog(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Catalog reloaded: species=%v items=%v", out["species"], out["items"]))
			return nil
		},
	})
	return cmd
}

func newDexCmd(g *globals) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dex",
		Short: "Browse the catalog straight from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.dbURL == "" {
				return errors.New("dex needs --database-url or DATABASE_URL")
			}
			ctx := cmd.Context()
			pool, err := db.Connect(ctx, g.dbURL, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			c, err := store.New(pool, discardLogger()).LoadCatalog(ctx)
			if err != nil {
				return err
			}

			forms := c.BaseForms()
			options := make([]string, len(forms))
			for i, sp := range forms {
				options[i] = fmt.Sprintf("#%d %s%s", sp.Num, sp.DisplayName(), sp.Star())
			}
			m, err := menu.New(options, nil, menu.Options{Count: 1, PerPage: 15})
			if err != nil {
				return err
			}
			res, err := termui.Run(ctx, m, fmt.Sprintf("Pokedex (%d species)", len(forms)), timeout)
			if err != nil {
				return err
			}
			if res.Cancelled || len(res.Selected) == 0 {
				printInfo("Nothing selected.")
				return nil
			}
			sp := forms[res.Selected[0]]
			renderDexEntry(sp, c.Color(sp), c.EvolutionChain(sp.Num))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "close the menu after this long without input")
	return cmd
}

func parseID(label, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, s)
	}
	return id, nil
}

func parsePair(args []string) (int64, int64, error) {
	guildID, err := parseID("guild id", args[0])
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseID("user id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return guildID, userID, nil
}

// parseDelta reads "Pokeball=5 money=-200" pairs. Repeated items add up.
func parseDelta(args []string) (map[string]int, error) {
	out := map[string]int{}
	for _, a := range args {
		name, qty, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected item=qty, got %q", a)
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q", a)
		}
		out[name] += n
	}
	return out, nil
}
