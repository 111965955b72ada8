package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pokebot/internal/api"
	"pokebot/internal/flow"
	"pokebot/internal/store"
)

// Client talks to the bot's admin API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StatusError is a non-2xx admin API response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Health struct {
	OK            bool   `json:"ok"`
	CatalogLoaded bool   `json:"catalog_loaded"`
	Error         string `json:"error"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, &out, "")
	return out, err
}

type EventReport struct {
	Since  time.Time          `json:"since"`
	Total  int64              `json:"total"`
	Events []store.EventCount `json:"events"`
}

func (c *Client) Events(ctx context.Context, since time.Duration) (EventReport, error) {
	var out EventReport
	path := "/v1/events?since=" + url.QueryEscape(since.String())
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, "")
	return out, err
}

func (c *Client) Species(ctx context.Context, query string, shiny bool) (api.SpeciesView, error) {
	var out api.SpeciesView
	path := "/v1/species/" + url.PathEscape(query)
	if shiny {
		path += "?shiny=true"
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, "")
	return out, err
}

func (c *Client) ReloadCatalog(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/catalog/reload", nil, &out, "")
	return out, err
}

func (c *Client) Trainer(ctx context.Context, userID int64) (store.TrainerSummary, error) {
	var out store.TrainerSummary
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/trainers/"+strconv.FormatInt(userID, 10), nil, &out, "")
	return out, err
}

// Grant applies delta to a trainer's inventory and returns the new one.
func (c *Client) Grant(ctx context.Context, userID int64, delta map[string]int, idem string) (map[string]int, error) {
	var out struct {
		Inventory map[string]int `json:"inventory"`
	}
	path := "/v1/trainers/" + strconv.FormatInt(userID, 10) + "/inventory"
	err := c.jsonRequest(ctx, http.MethodPost, path, map[string]any{"delta": delta}, &out, idem)
	return out.Inventory, err
}

// Yield credits a defeated species' yield to the owned creature id.
func (c *Client) Yield(ctx context.Context, id int64, defeated, defeatedExp int, wild bool, participants int) (flow.YieldAward, error) {
	var out flow.YieldAward
	path := "/v1/pokemon/" + strconv.FormatInt(id, 10) + "/yield"
	err := c.jsonRequest(ctx, http.MethodPost, path, map[string]any{
		"defeated":     defeated,
		"defeated_exp": defeatedExp,
		"wild":         wild,
		"participants": participants,
	}, &out, "")
	return out, err
}

func (c *Client) Plonk(ctx context.Context, guildID, userID int64) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/plonks", map[string]any{
		"guild_id": strconv.FormatInt(guildID, 10),
		"user_id":  strconv.FormatInt(userID, 10),
	}, nil, "")
}

func (c *Client) Unplonk(ctx context.Context, guildID, userID int64) error {
	path := fmt.Sprintf("/v1/plonks/%d/%d", guildID, userID)
	return c.jsonRequest(ctx, http.MethodDelete, path, nil, nil, "")
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
