package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tycoon/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func playerPath(playerID string, rest string) string {
	return "/v1/players/" + url.PathEscape(playerID) + rest
}

func (c *Client) Catalog(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", nil, &out, "")
	return out, err
}

func (c *Client) CreatePlayer(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", map[string]any{}, &out, "")
	return out, err
}

func (c *Client) Dashboard(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/"), nil, &out, "")
	return out, err
}

func (c *Client) Click(ctx context.Context, playerID string, count int, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/click"), map[string]any{
		"count": count,
	}, &out, idem)
	return out, err
}

func (c *Client) Upgrades(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/upgrades"), nil, &out, "")
	return out, err
}

func (c *Client) BuyUpgrade(ctx context.Context, playerID, upgradeID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/upgrades/"+url.PathEscape(upgradeID)+"/buy"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) Bosses(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/bosses"), nil, &out, "")
	return out, err
}

func (c *Client) EngageBoss(ctx context.Context, playerID, bossID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/bosses/"+url.PathEscape(bossID)+"/engage"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) FleeBoss(ctx context.Context, playerID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/boss/flee"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) PrestigePreview(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/prestige"), nil, &out, "")
	return out, err
}

func (c *Client) Prestige(ctx context.Context, playerID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/prestige"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) Skins(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/skins"), nil, &out, "")
	return out, err
}

func (c *Client) BuySkin(ctx context.Context, playerID, skinID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/skins/"+url.PathEscape(skinID)+"/buy"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) EquipSkin(ctx context.Context, playerID, skinID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/skins/"+url.PathEscape(skinID)+"/equip"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) ClaimDaily(ctx context.Context, playerID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/daily"), map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) Achievements(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/achievements"), nil, &out, "")
	return out, err
}

func (c *Client) SaveInfo(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/save"), nil, &out, "")
	return out, err
}

func (c *Client) SaveNow(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/save"), map[string]any{}, &out, "")
	return out, err
}

func (c *Client) SyncReplay(ctx context.Context, playerID string, actions []game.Action) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/sync/replay"), map[string]any{
		"actions": actions,
	}, &out, "")
	return out, err
}

// EventsURL is the websocket address of the player's event stream.
func (c *Client) EventsURL(playerID string) string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + playerPath(playerID, "/events")
}

func (c *Client) Do(ctx context.Context, method, path string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, body, &out, idem)
	return out, err
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
		return fmt.Errorf("api status %d: %s", resp.StatusCode, apiMessage(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiMessage pulls the message out of an {"error": ...} body when there is one.
func apiMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
