package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tycoon/internal/game"
)

func TestClientSendsIdempotencyKeyAndBody(t *testing.T) {
	var gotKey, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clicks":5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	out, err := c.Click(context.Background(), "p-1", 5, "key-1")
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if gotKey != "key-1" {
		t.Fatalf("idempotency key = %q", gotKey)
	}
	if gotPath != "/v1/players/p-1/click" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["count"] != float64(5) {
		t.Fatalf("body = %v", gotBody)
	}
	if out["clicks"] != float64(5) {
		t.Fatalf("out = %v", out)
	}
}

func TestClientStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"insufficient funds: sharp_claws costs 100"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).BuyUpgrade(context.Background(), "p-1", "sharp_claws", "k")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "api status 400: insufficient funds: sharp_claws costs 100"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}

func TestClientReplayPayload(t *testing.T) {
	var got struct {
		Actions []game.Action `json:"actions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	actions := []game.Action{{Kind: game.ActionBuyUpgrade, Ref: "keen_eye", IdempotencyKey: "a"}}
	if _, err := NewClient(srv.URL).SyncReplay(context.Background(), "p", actions); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got.Actions) != 1 || got.Actions[0].Ref != "keen_eye" {
		t.Fatalf("actions = %+v", got.Actions)
	}
}

func TestEventsURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080": "ws://localhost:8080/v1/players/p/events",
		"https://tycoon.example": "wss://tycoon.example/v1/players/p/events",
	}
	for base, want := range tests {
		if got := NewClient(base).EventsURL("p"); got != want {
			t.Fatalf("EventsURL(%q) = %q want %q", base, got, want)
		}
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("TYC_HOME", t.TempDir())

	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := SaveSession(Session{PlayerID: "player-one"}); !errors.Is(err, game.ErrInvalidPlayerID) {
		t.Fatalf("expected invalid player id, got %v", err)
	}
	want := Session{PlayerID: "6f1c2f7e-6a55-4d43-9a0e-3b1f2f0a9c11", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := SaveSession(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
