package syncq

import (
	"testing"

	"tycoon/internal/game"
)

func TestPushLoadSplit(t *testing.T) {
	t.Setenv("TYC_HOME", t.TempDir())

	got, err := Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty queue, got %d", len(got))
	}

	push := []Command{
		{PlayerID: "a", Action: game.Action{Kind: game.ActionClick, Count: 10, IdempotencyKey: "1"}},
		{PlayerID: "b", Action: game.Action{Kind: game.ActionClaimDaily, IdempotencyKey: "2"}},
		{PlayerID: "a", Action: game.Action{Kind: game.ActionBuyUpgrade, Ref: "keen_eye", IdempotencyKey: "3"}},
	}
	for _, c := range push {
		if err := Push(c); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	all, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("queued %d want 3", len(all))
	}
	if all[0].QueuedAt.IsZero() {
		t.Fatal("push should stamp QueuedAt")
	}

	mine, rest := Split(all, "a")
	if len(mine) != 2 || len(rest) != 1 {
		t.Fatalf("split mine=%d rest=%d", len(mine), len(rest))
	}
	actions := Actions(mine)
	if actions[0].IdempotencyKey != "1" || actions[1].Ref != "keen_eye" {
		t.Fatalf("actions out of order: %+v", actions)
	}
}

func TestPushCapsQueue(t *testing.T) {
	t.Setenv("TYC_HOME", t.TempDir())
	seed := make([]Command, maxQueued)
	for i := range seed {
		seed[i] = Command{PlayerID: "a", Action: game.Action{Kind: game.ActionClick}}
	}
	if err := Save(seed); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := Push(Command{PlayerID: "a", Action: game.Action{Kind: game.ActionPrestige, IdempotencyKey: "last"}}); err != nil {
		t.Fatalf("push: %v", err)
	}
	all, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != maxQueued {
		t.Fatalf("queue len %d want %d", len(all), maxQueued)
	}
	if all[len(all)-1].Action.IdempotencyKey != "last" {
		t.Fatal("newest command should be kept")
	}
}
