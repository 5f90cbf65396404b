package save

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"tycoon/internal/catalog"
	"tycoon/internal/game"

	"github.com/cespare/xxhash/v2"
)

const CurrentVersion = "3.1.0"

// Envelope is the stored form of a save. Checksum covers the exact bytes of Data.
type Envelope struct {
	Version   string          `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Checksum  string          `json:"checksum,omitempty"`
	Data      json.RawMessage `json:"data"`
}

type Decoded struct {
	State       *game.PlayerState
	Version     string
	SavedAt     time.Time
	Migrated    bool
	HadChecksum bool
}

func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

type Codec struct {
	defaults defaults
}

func NewCodec(rules catalog.Rules) *Codec {
	return &Codec{defaults: defaults{
		startingSkin:     rules.StartingSkin,
		startingXPToNext: rules.StartingXPToNext,
	}}
}

func (c *Codec) Encode(s *game.PlayerState, now time.Time) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return json.Marshal(Envelope{
		Version:   CurrentVersion,
		Timestamp: now.UnixMilli(),
		Checksum:  Checksum(data),
		Data:      data,
	})
}

// Decode verifies, migrates and validates a stored save. Saves written before
// checksums existed are accepted, as are bare state objects from the first
// release, which carried no envelope at all.
func (c *Codec) Decode(blob []byte) (Decoded, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", game.ErrCorruptSave, err)
	}

	var env Envelope
	switch {
	case fields["data"] != nil:
		if err := json.Unmarshal(blob, &env); err != nil {
			return Decoded{}, fmt.Errorf("%w: envelope: %v", game.ErrCorruptSave, err)
		}
	case fields["coins"] != nil:
		env = Envelope{Version: legacyVersion, Data: blob}
	default:
		return Decoded{}, fmt.Errorf("%w: unrecognised save layout", game.ErrCorruptSave)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Decoded{}, fmt.Errorf("%w: empty state", game.ErrCorruptSave)
	}
	if env.Checksum != "" {
		if got := Checksum(env.Data); got != env.Checksum {
			return Decoded{}, fmt.Errorf("%w: checksum mismatch (stored %s, computed %s)", game.ErrCorruptSave, env.Checksum, got)
		}
	} else if checksummed[env.Version] {
		return Decoded{}, fmt.Errorf("%w: missing checksum", game.ErrCorruptSave)
	}
	if env.Version == "" {
		env.Version = legacyVersion
	}

	out := Decoded{
		Version:     env.Version,
		HadChecksum: env.Checksum != "",
	}
	if env.Timestamp > 0 {
		out.SavedAt = time.UnixMilli(env.Timestamp).UTC()
	}

	var st game.PlayerState
	if env.Version == CurrentVersion {
		if err := json.Unmarshal(data, &st); err != nil {
			return Decoded{}, fmt.Errorf("%w: state: %v", game.ErrCorruptSave, err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var tree map[string]any
		if err := dec.Decode(&tree); err != nil {
			return Decoded{}, fmt.Errorf("%w: state: %v", game.ErrCorruptSave, err)
		}
		if err := c.defaults.migrate(tree, env.Version); err != nil {
			return Decoded{}, err
		}
		raw, err := json.Marshal(tree)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: migrated state: %v", game.ErrCorruptSave, err)
		}
		if err := json.Unmarshal(raw, &st); err != nil {
			return Decoded{}, fmt.Errorf("%w: migrated state: %v", game.ErrCorruptSave, err)
		}
		out.Migrated = true
	}

	if err := Validate(&st); err != nil {
		return Decoded{}, err
	}
	st.Normalize()
	out.State = &st
	return out, nil
}

func Validate(s *game.PlayerState) error {
	switch {
	case s.Level < 1:
		return fmt.Errorf("%w: level %d < 1", game.ErrCorruptSave, s.Level)
	case s.Coins < 0 || s.Diamonds < 0 || s.Score < 0:
		return fmt.Errorf("%w: negative currency", game.ErrCorruptSave)
	case s.Experience < 0 || s.ExperienceToNext <= 0:
		return fmt.Errorf("%w: experience out of range", game.ErrCorruptSave)
	case s.ClickPower < game.StartingClickPower:
		return fmt.Errorf("%w: click power %v < %v", game.ErrCorruptSave, s.ClickPower, game.StartingClickPower)
	case s.PrestigeMultiplier < 1:
		return fmt.Errorf("%w: prestige multiplier %v < 1", game.ErrCorruptSave, s.PrestigeMultiplier)
	}
	for id, lvl := range s.Upgrades {
		if lvl < 0 {
			return fmt.Errorf("%w: upgrade %s has negative level", game.ErrCorruptSave, id)
		}
	}
	if b := s.CurrentBoss; b != nil {
		if b.MaxHealth <= 0 || b.CurrentHealth < 0 || b.CurrentHealth > b.MaxHealth {
			return fmt.Errorf("%w: boss health out of range", game.ErrCorruptSave)
		}
	}
	return nil
}

func peekEnvelope(blob []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil || env.Data == nil {
		return Envelope{}, false
	}
	return env, true
}
