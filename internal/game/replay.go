package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ActionClick      = "click"
	ActionBuyUpgrade = "buy_upgrade"
	ActionEngageBoss = "engage_boss"
	ActionFleeBoss   = "flee_boss"
	ActionPrestige   = "prestige"
	ActionBuySkin    = "buy_skin"
	ActionEquipSkin  = "equip_skin"
	ActionClaimDaily = "claim_daily"
)

// Action is one queued player command, as recorded by an offline client.
type Action struct {
	Kind           string `json:"action"`
	Ref            string `json:"ref,omitempty"`
	Count          int    `json:"count,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ReplayResult struct {
	IdempotencyKey string `json:"idempotency_key"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

const (
	ReplayApplied   = "applied"
	ReplayDuplicate = "duplicate"
	ReplayRejected  = "rejected"
)

func (s *Service) Apply(ctx context.Context, playerID string, a Action) error {
	ref := strings.TrimSpace(a.Ref)
	switch strings.ToLower(strings.TrimSpace(a.Kind)) {
	case ActionClick:
		_, err := s.Click(ctx, playerID, a.Count, a.IdempotencyKey)
		return err
	case ActionBuyUpgrade:
		_, err := s.BuyUpgrade(ctx, playerID, ref, a.IdempotencyKey)
		return err
	case ActionEngageBoss:
		_, err := s.EngageBoss(ctx, playerID, ref, a.IdempotencyKey)
		return err
	case ActionFleeBoss:
		_, err := s.FleeBoss(ctx, playerID, a.IdempotencyKey)
		return err
	case ActionPrestige:
		_, err := s.Prestige(ctx, playerID, a.IdempotencyKey)
		return err
	case ActionBuySkin:
		return s.BuySkin(ctx, playerID, ref, a.IdempotencyKey)
	case ActionEquipSkin:
		return s.EquipSkin(ctx, playerID, ref, a.IdempotencyKey)
	case ActionClaimDaily:
		_, err := s.ClaimDaily(ctx, playerID, a.IdempotencyKey)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

// Replay applies queued actions in order. Rule rejections are reported per
// action and do not stop the batch; storage failures do.
func (s *Service) Replay(ctx context.Context, playerID string, actions []Action) ([]ReplayResult, error) {
	if _, err := ValidatePlayerID(playerID); err != nil {
		return nil, err
	}
	if len(actions) > maxReplayActions {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyActions, len(actions), maxReplayActions)
	}
	out := make([]ReplayResult, 0, len(actions))
	for _, a := range actions {
		res := ReplayResult{IdempotencyKey: a.IdempotencyKey, Action: a.Kind, Status: ReplayApplied}
		err := s.Apply(ctx, playerID, a)
		switch {
		case err == nil:
		case errors.Is(err, ErrDuplicateIdempotency):
			res.Status = ReplayDuplicate
		case errors.Is(err, ErrStorageUnavailable):
			return out, err
		default:
			res.Status = ReplayRejected
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out, nil
}
