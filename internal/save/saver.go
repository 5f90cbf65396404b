package save

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tycoon/internal/game"
)

const (
	mainPrefix       = "save:"
	backupPrefix     = "backup:"
	quarantinePrefix = "quarantine:"
)

func MainKey(playerID string) string       { return mainPrefix + playerID }
func BackupKey(playerID string) string     { return backupPrefix + playerID }
func QuarantineKey(playerID string) string { return quarantinePrefix + playerID }

// Saver implements game.Persister over a Store. Every save rewrites the main
// copy; the backup copy is refreshed on a player's first save and then every
// backupEvery saves after that.
type Saver struct {
	store       Store
	codec       *Codec
	log         *slog.Logger
	now         func() time.Time
	backupEvery int

	mu     sync.Mutex
	counts map[string]int
}

func NewSaver(store Store, codec *Codec, backupEvery int, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	if backupEvery < 1 {
		backupEvery = 1
	}
	return &Saver{
		store:       store,
		codec:       codec,
		log:         logger,
		now:         time.Now,
		backupEvery: backupEvery,
		counts:      make(map[string]int),
	}
}

func (s *Saver) Codec() *Codec { return s.codec }

func (s *Saver) Save(ctx context.Context, playerID string, st *game.PlayerState) error {
	blob, err := s.codec.Encode(st, s.now())
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, MainKey(playerID), blob); err != nil {
		return fmt.Errorf("%w: write save: %v", game.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	s.counts[playerID]++
	n := s.counts[playerID]
	s.mu.Unlock()

	if n == 1 || n%s.backupEvery == 0 {
		if err := s.store.Set(ctx, BackupKey(playerID), blob); err != nil {
			s.log.Warn("backup write failed", "player_id", playerID, "err", err)
		}
	}
	return nil
}

// Load returns the player's state from the main save, falling back to the
// backup and then to nothing. Only store failures are returned as errors.
func (s *Saver) Load(ctx context.Context, playerID string) (*game.PlayerState, game.LoadReport, error) {
	var problems []string

	blob, err := s.store.Get(ctx, MainKey(playerID))
	switch {
	case err == nil:
		dec, derr := s.codec.Decode(blob)
		if derr == nil {
			return dec.State, game.LoadReport{Source: game.LoadedMain, FromVersion: dec.Version, Migrated: dec.Migrated}, nil
		}
		problems = append(problems, "main: "+derr.Error())
		s.quarantine(ctx, playerID, blob)
	case errors.Is(err, ErrNotFound):
	default:
		return nil, game.LoadReport{}, fmt.Errorf("%w: read save: %v", game.ErrStorageUnavailable, err)
	}

	blob, err = s.store.Get(ctx, BackupKey(playerID))
	switch {
	case err == nil:
		dec, derr := s.codec.Decode(blob)
		if derr == nil {
			if len(problems) == 0 {
				problems = append(problems, "main: missing")
			}
			return dec.State, game.LoadReport{
				Source:      game.LoadedBackup,
				FromVersion: dec.Version,
				Migrated:    dec.Migrated,
				Problem:     strings.Join(problems, "; "),
			}, nil
		}
		problems = append(problems, "backup: "+derr.Error())
	case errors.Is(err, ErrNotFound):
	default:
		return nil, game.LoadReport{}, fmt.Errorf("%w: read backup: %v", game.ErrStorageUnavailable, err)
	}

	return nil, game.LoadReport{Source: game.LoadedFresh, Problem: strings.Join(problems, "; ")}, nil
}

func (s *Saver) quarantine(ctx context.Context, playerID string, blob []byte) {
	if err := s.store.Set(ctx, QuarantineKey(playerID), blob); err != nil {
		s.log.Warn("quarantine write failed", "player_id", playerID, "err", err)
	}
}

func (s *Saver) Remove(ctx context.Context, playerID string) error {
	for _, key := range []string{MainKey(playerID), BackupKey(playerID), QuarantineKey(playerID)} {
		if err := s.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("%w: remove %s: %v", game.ErrStorageUnavailable, key, err)
		}
	}
	s.mu.Lock()
	delete(s.counts, playerID)
	s.mu.Unlock()
	return nil
}

type Slot struct {
	Exists   bool      `json:"exists"`
	Valid    bool      `json:"valid"`
	Version  string    `json:"version,omitempty"`
	SavedAt  time.Time `json:"saved_at,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	Size     int       `json:"size"`
	Problem  string    `json:"problem,omitempty"`

	Level         int     `json:"level,omitempty"`
	Coins         float64 `json:"coins,omitempty"`
	PrestigeLevel int     `json:"prestige_level,omitempty"`
}

type Info struct {
	PlayerID string `json:"player_id"`
	Main     Slot   `json:"main"`
	Backup   Slot   `json:"backup"`
}

func (s *Saver) Info(ctx context.Context, playerID string) (Info, error) {
	main, err := s.slot(ctx, MainKey(playerID))
	if err != nil {
		return Info{}, err
	}
	backup, err := s.slot(ctx, BackupKey(playerID))
	if err != nil {
		return Info{}, err
	}
	return Info{PlayerID: playerID, Main: main, Backup: backup}, nil
}

func (s *Saver) slot(ctx context.Context, key string) (Slot, error) {
	blob, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Slot{}, nil
	}
	if err != nil {
		return Slot{}, fmt.Errorf("%w: read %s: %v", game.ErrStorageUnavailable, key, err)
	}
	out := Slot{Exists: true, Size: len(blob)}
	dec, err := s.codec.Decode(blob)
	if err != nil {
		out.Problem = err.Error()
		return out, nil
	}
	out.Valid = true
	out.Version = dec.Version
	out.SavedAt = dec.SavedAt
	out.Level = dec.State.Level
	out.Coins = dec.State.Coins
	out.PrestigeLevel = dec.State.PrestigeLevel
	if dec.HadChecksum {
		if env, ok := peekEnvelope(blob); ok {
			out.Checksum = env.Checksum
		}
	}
	return out, nil
}

const (
	VerifyOK       = "ok"
	VerifyRepaired = "repaired"
	VerifyUpgraded = "upgraded"
	VerifyCorrupt  = "corrupt"
	VerifyMissing  = "missing"
	VerifyChanged  = "changed"
)

type VerifyResult struct {
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
	Problem  string `json:"problem,omitempty"`
}

// Verify checks a player's main save. A corrupt main is rewritten from a valid
// backup, and a valid save in an older format is rewritten at CurrentVersion.
// The rewrite is skipped with VerifyChanged when the main copy moved while it
// was being checked.
func (s *Saver) Verify(ctx context.Context, playerID string) (VerifyResult, error) {
	res := VerifyResult{PlayerID: playerID}
	before, err := s.readMain(ctx, playerID)
	if err != nil {
		return res, err
	}
	st, report, err := s.Load(ctx, playerID)
	if err != nil {
		return res, err
	}
	res.Problem = report.Problem

	switch {
	case st == nil && report.Problem == "":
		res.Status = VerifyMissing
		return res, nil
	case st == nil:
		res.Status = VerifyCorrupt
		return res, nil
	case report.Source == game.LoadedBackup:
		res.Status = VerifyRepaired
	case report.Migrated:
		res.Status = VerifyUpgraded
	default:
		res.Status = VerifyOK
		return res, nil
	}

	blob, err := s.codec.Encode(st, s.now())
	if err != nil {
		return res, err
	}
	current, err := s.readMain(ctx, playerID)
	if err != nil {
		return res, err
	}
	if !bytes.Equal(before, current) || (before == nil) != (current == nil) {
		res.Status = VerifyChanged
		return res, nil
	}
	if err := s.store.Set(ctx, MainKey(playerID), blob); err != nil {
		return res, fmt.Errorf("%w: write save: %v", game.ErrStorageUnavailable, err)
	}
	return res, nil
}

// readMain returns the raw main copy, or nil when there is none.
func (s *Saver) readMain(ctx context.Context, playerID string) ([]byte, error) {
	blob, err := s.store.Get(ctx, MainKey(playerID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read save: %v", game.ErrStorageUnavailable, err)
	}
	if blob == nil {
		blob = []byte{}
	}
	return blob, nil
}

type SweepReport struct {
	Checked  int            `json:"checked"`
	Statuses map[string]int `json:"statuses"`
	Failed   []string       `json:"failed,omitempty"`
}

// Sweep verifies every main save in the store.
func (s *Saver) Sweep(ctx context.Context) (SweepReport, error) {
	keys, err := s.store.Keys(ctx, mainPrefix)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%w: list saves: %v", game.ErrStorageUnavailable, err)
	}
	out := SweepReport{Statuses: map[string]int{}}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		id := strings.TrimPrefix(key, mainPrefix)
		res, err := s.Verify(ctx, id)
		out.Checked++
		if err != nil {
			s.log.Error("save verify failed", "player_id", id, "err", err)
			out.Failed = append(out.Failed, id)
			continue
		}
		out.Statuses[res.Status]++
		if res.Status != VerifyOK {
			s.log.Info("save verified", "player_id", id, "status", res.Status, "problem", res.Problem)
		}
	}
	return out, nil
}
