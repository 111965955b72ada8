// Package api is the bot's admin HTTP surface: health, usage statistics,
// catalog lookups and trainer maintenance.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"pokebot/internal/flow"
	"pokebot/internal/game"
	"pokebot/internal/store"
)

type Store interface {
	Ping(ctx context.Context) error
	Catalog() (*game.Catalog, error)
	LoadCatalog(ctx context.Context) (*game.Catalog, error)
	EventBreakdown(ctx context.Context, since time.Time) ([]store.EventCount, error)
	TrainerSummary(ctx context.Context, userID int64) (store.TrainerSummary, error)
	ApplyInventory(ctx context.Context, userID int64, delta game.Inventory) (game.Inventory, error)
	Plonk(ctx context.Context, guildID, userID int64) error
	Unplonk(ctx context.Context, guildID, userID int64) (bool, error)
}

// Yields credits battle yield to an owned creature.
type Yields interface {
	AwardYield(ctx context.Context, req flow.YieldRequest) (flow.YieldAward, error)
}

type Server struct {
	token  string
	log    *slog.Logger
	store  Store
	yields Yields
	mux    *chi.Mux
	now    func() time.Time
}

// New builds the admin server. Every /v1 route requires token as a bearer
// token; an empty token disables them.
func New(token string, logger *slog.Logger, st Store, yields Yields) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		token:  token,
		log:    logger,
		store:  st,
		yields: yields,
		mux:    chi.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/events", s.handleEvents)
		r.Get("/species/{query}", s.handleSpecies)
		r.Post("/catalog/reload", s.handleCatalogReload)
		r.Get("/trainers/{id}", s.handleTrainer)
		r.Post("/trainers/{id}/inventory", s.handleGrant)
		r.Post("/pokemon/{id}/yield", s.handleYield)
		r.Post("/plonks", s.handlePlonk)
		r.Delete("/plonks/{guild_id}/{user_id}", s.handleUnplonk)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			writeError(w, http.StatusServiceUnavailable, "admin api disabled")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	_, err := s.store.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "catalog_loaded": err == nil})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "since must be a positive duration like 24h")
			return
		}
		window = d
	}
	since := s.now().Add(-window)
	counts, err := s.store.EventBreakdown(r.Context(), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if counts == nil {
		counts = []store.EventCount{}
	}
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":  since.UTC(),
		"total":  total,
		"events": counts,
	})
}

// SpeciesView is the admin rendering of a species.
type SpeciesView struct {
	Num        int        `json:"num"`
	FormID     int        `json:"form_id"`
	Name       string     `json:"name"`
	Types      []string   `json:"types"`
	Rarity     string     `json:"rarity"`
	Base       game.Stats `json:"base"`
	XPYield    int        `json:"xp_yield"`
	Color      int        `json:"color"`
	Evolutions string     `json:"evolutions"`
	Image      string     `json:"image"`
}

func (s *Server) handleSpecies(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Catalog()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	query := strings.TrimSpace(chi.URLParam(r, "query"))
	var sp game.Species
	if n, convErr := strconv.Atoi(query); convErr == nil {
		sp, err = c.SpeciesByNum(n)
	} else {
		sp, err = c.SpeciesByName(query)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	shiny, _ := strconv.ParseBool(r.URL.Query().Get("shiny"))
	writeJSON(w, http.StatusOK, SpeciesView{
		Num:        sp.Num,
		FormID:     sp.FormID,
		Name:       sp.DisplayName(),
		Types:      sp.Types,
		Rarity:     sp.Rarity(),
		Base:       sp.Base,
		XPYield:    sp.XPYield,
		Color:      c.Color(sp),
		Evolutions: strings.ReplaceAll(c.EvolutionChain(sp.Num), `\`, ""),
		Image:      game.ImagePath(shiny, sp.Num, 0),
	})
}

func (s *Server) handleCatalogReload(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.LoadCatalog(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("catalog reloaded via admin api", "request_id", middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"species": c.TotalSpecies(),
		"items":   len(c.Items()),
	})
}

func (s *Server) handleTrainer(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := s.store.TrainerSummary(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Delta map[string]int `json:"delta"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(in.Delta) == 0 {
		writeError(w, http.StatusBadRequest, "delta is required")
		return
	}
	if c, err := s.store.Catalog(); err == nil {
		known := map[string]bool{}
		for _, it := range c.Items() {
			known[it.Name] = true
		}
		for name := range in.Delta {
			if !known[name] {
				writeError(w, http.StatusBadRequest, "unknown item "+name)
				return
			}
		}
	}
	inv, err := s.store.ApplyInventory(r.Context(), userID, game.Inventory(in.Delta))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("inventory adjusted", "grant_id", grantID(r), "user_id", userID, "delta", in.Delta)
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "inventory": inv})
}

func (s *Server) handleYield(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Defeated     int  `json:"defeated"`
		DefeatedExp  int  `json:"defeated_exp"`
		Wild         bool `json:"wild"`
		Participants int  `json:"participants"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Defeated <= 0 || in.DefeatedExp < 0 || in.Participants < 0 {
		writeError(w, http.StatusBadRequest, "defeated is required and counts must not be negative")
		return
	}
	award, err := s.yields.AwardYield(r.Context(), flow.YieldRequest{
		Winner:       id,
		Defeated:     in.Defeated,
		DefeatedExp:  in.DefeatedExp,
		Wild:         in.Wild,
		Participants: in.Participants,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, award)
}

func (s *Server) handlePlonk(w http.ResponseWriter, r *http.Request) {
	var in struct {
		GuildID int64 `json:"guild_id,string"`
		UserID  int64 `json:"user_id,string"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.GuildID <= 0 || in.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "guild_id and user_id are required")
		return
	}
	if err := s.store.Plonk(r.Context(), in.GuildID, in.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"plonked": true})
}

func (s *Server) handleUnplonk(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathID(w, r, "guild_id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	removed, err := s.store.Unplonk(r.Context(), guildID, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "user is not plonked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plonked": false})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrTooPoor), errors.Is(err, game.ErrNoItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrAlreadyPlonked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrCatalogNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func grantID(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
