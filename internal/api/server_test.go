package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tycoon/internal/catalog"
	"tycoon/internal/config"
	"tycoon/internal/events"
	"tycoon/internal/game"
	"tycoon/internal/save"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietRoller never crits, never rolls lucky and never drops diamonds.
type quietRoller struct{}

func (quietRoller) Float64() float64 { return 0.999 }

// steppingClock moves one second forward every time it is read, so separate
// requests never fall inside one click combo.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testAPI struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cat := catalog.Default()
	saver := save.NewSaver(save.NewMemoryStore(), save.NewCodec(cat.Rules()), 10, nil)
	svc := game.NewService(game.NewEngine(cat, quietRoller{}), saver, nil, nil)
	clock := &steppingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)
	srv := httptest.NewServer(New(config.APIConfig{}, nil, svc, saver, events.NewHub(nil)).Handler())
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv}
}

func (a *testAPI) do(method, path string, body any, headers map[string]string) (int, map[string]any) {
	a.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rdr)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (a *testAPI) newPlayer() string {
	a.t.Helper()
	status, out := a.do(http.MethodPost, "/v1/players", nil, nil)
	require.Equal(a.t, http.StatusCreated, status, out)
	id, _ := out["player_id"].(string)
	require.NotEmpty(a.t, id)
	return id
}

func TestHealthzAndCatalog(t *testing.T) {
	a := newTestAPI(t)

	status, out := a.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["ok"])

	status, out = a.do(http.MethodGet, "/v1/catalog", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["upgrades"], 12)
	assert.Len(t, out["bosses"], 8)
	assert.Len(t, out["daily_rewards"], 7)

	status, _ = a.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestInvalidPlayerID(t *testing.T) {
	a := newTestAPI(t)
	status, out := a.do(http.MethodGet, "/v1/players/not-a-uuid/", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["error"], "uuid")
}

func TestClickUpgradeFlow(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	base := "/v1/players/" + id

	status, out := a.do(http.MethodGet, base+"/", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, out["coins"])
	assert.Equal(t, 1.0, out["level"])

	status, out = a.do(http.MethodPost, base+"/click", map[string]any{"count": 100}, nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, 100.0, out["clicks"])
	// one batch is a single burst: the combo climbs to its ×3.4 cap
	assert.Equal(t, 270.0, out["coins_gained"])
	assert.Equal(t, 25.0, out["combo"])
	assert.Equal(t, 1.0, out["level_ups"])
	assert.Contains(t, out["achievements"], "first_click")

	status, out = a.do(http.MethodPost, base+"/upgrades/sharp_claws/buy", nil, nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, 1.0, out["level"])
	assert.Equal(t, 100.0, out["cost"])
	assert.Equal(t, 115.0, out["next_cost"])

	status, _ = a.do(http.MethodPost, base+"/upgrades/dragons_blessing/buy", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPost, base+"/upgrades/no_such_thing/buy", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(http.MethodPost, base+"/upgrades/wyrm_workforce/buy", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, out = a.do(http.MethodPost, base+"/click", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["clicks"])
	assert.Equal(t, 3.0, out["damage"], "click power 1 + 2 from sharp_claws")

	status, out = a.do(http.MethodGet, base+"/upgrades", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["upgrades"], 12)
}

func TestClickRejectsUnknownFields(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	status, _ := a.do(http.MethodPost, "/v1/players/"+id+"/click", map[string]any{"clicks": 5}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBossLifecycle(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	base := "/v1/players/" + id

	status, out := a.do(http.MethodPost, base+"/bosses/orc/engage", nil, nil)
	assert.Equal(t, http.StatusForbidden, status, out)

	status, out = a.do(http.MethodPost, base+"/bosses/goblin/engage", nil, nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "goblin", out["bossId"])
	assert.Equal(t, 100.0, out["currentHealth"])

	status, _ = a.do(http.MethodPost, base+"/bosses/goblin/engage", nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, out = a.do(http.MethodPost, base+"/click", map[string]any{"count": 40}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10.0, out["boss_remaining"], "40 combo clicks deal 90")
	assert.Equal(t, 0.0, out["coins_gained"])

	status, out = a.do(http.MethodGet, base+"/", nil, nil)
	require.Equal(t, http.StatusOK, status)
	boss, ok := out["current_boss"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Goblin King", boss["name"])

	status, out = a.do(http.MethodPost, base+"/boss/flee", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "goblin", out["fled"])

	status, _ = a.do(http.MethodPost, base+"/boss/flee", nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(http.MethodPost, base+"/bosses/goblin/engage", nil, nil)
	require.Equal(t, http.StatusOK, status)
	status, out = a.do(http.MethodPost, base+"/click", map[string]any{"count": 100}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"goblin"}, out["bosses_slain"])

	status, _ = a.do(http.MethodPost, base+"/bosses/goblin/engage", nil, nil)
	assert.Equal(t, http.StatusConflict, status, "defeated bosses cannot be re-engaged")

	status, out = a.do(http.MethodGet, base+"/bosses", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["bosses"], 8)
}

func TestPrestigeBelowThreshold(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	base := "/v1/players/" + id

	status, out := a.do(http.MethodGet, base+"/prestige", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["eligible"])

	status, _ = a.do(http.MethodPost, base+"/prestige", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSkinsDailyAndAchievements(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	base := "/v1/players/" + id

	status, out := a.do(http.MethodGet, base+"/skins", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["skins"], 6)

	status, _ = a.do(http.MethodPost, base+"/skins/dragon_basic/buy", nil, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = a.do(http.MethodPost, base+"/skins/dragon_fire/equip", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.do(http.MethodPost, base+"/skins/dragon_fire/buy", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.do(http.MethodPost, base+"/skins/unicorn/buy", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, out = a.do(http.MethodPost, base+"/daily", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["streak"])
	status, _ = a.do(http.MethodPost, base+"/daily", nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, out = a.do(http.MethodGet, base+"/achievements", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, out["achievements"])
}

func TestIdempotencyKeyRejectsRepeat(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	h := map[string]string{"Idempotency-Key": "click-1"}

	status, _ := a.do(http.MethodPost, "/v1/players/"+id+"/click", nil, h)
	assert.Equal(t, http.StatusOK, status)
	status, out := a.do(http.MethodPost, "/v1/players/"+id+"/click", nil, h)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, out["error"], "duplicate")
}

func TestSaveEndpoints(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()
	base := "/v1/players/" + id

	status, out := a.do(http.MethodPost, base+"/save", nil, nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, true, out["ok"])

	status, out = a.do(http.MethodGet, base+"/save", nil, nil)
	require.Equal(t, http.StatusOK, status)
	loaded := out["loaded_from"].(map[string]any)
	assert.Equal(t, game.LoadedFresh, loaded["source"])
	slots := out["slots"].(map[string]any)
	main := slots["main"].(map[string]any)
	assert.Equal(t, true, main["exists"])
	assert.Equal(t, true, main["valid"])
	assert.Equal(t, save.CurrentVersion, main["version"])
}

func TestSyncReplay(t *testing.T) {
	a := newTestAPI(t)
	id := a.newPlayer()

	body := map[string]any{"actions": []game.Action{
		{Kind: game.ActionClick, Count: 3, IdempotencyKey: "q-1"},
		{Kind: game.ActionClick, Count: 3, IdempotencyKey: "q-1"},
		{Kind: game.ActionBuyUpgrade, Ref: "no_such_thing", IdempotencyKey: "q-2"},
		{Kind: "dance", IdempotencyKey: "q-3"},
	}}
	status, out := a.do(http.MethodPost, "/v1/players/"+id+"/sync/replay", body, nil)
	require.Equal(t, http.StatusOK, status, out)

	results := out["results"].([]any)
	require.Len(t, results, 4)
	statuses := make([]string, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.(map[string]any)["status"].(string))
	}
	assert.Equal(t, []string{game.ReplayApplied, game.ReplayDuplicate, game.ReplayRejected, game.ReplayRejected}, statuses)

	status, dash := a.do(http.MethodGet, "/v1/players/"+id+"/", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3.0, dash["total_clicks"])
}
