package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tycoon/internal/game"
)

var ErrNoSession = errors.New("no saved player")

// Session remembers which player this terminal plays as.
type Session struct {
	PlayerID   string    `json:"player_id"`
	APIBaseURL string    `json:"api_base_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BaseDir is where the terminal client keeps its files. TYC_HOME overrides
// the default of ~/.tyc.
func BaseDir() (string, error) {
	dir := os.Getenv("TYC_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".tyc")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func sessionPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

func SaveSession(s Session) error {
	id, err := game.ValidatePlayerID(s.PlayerID)
	if err != nil {
		return err
	}
	s.PlayerID = id
	path, err := sessionPath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", path, err)
	}
	if s.PlayerID, err = game.ValidatePlayerID(s.PlayerID); err != nil {
		return Session{}, fmt.Errorf("session %s: %w", path, err)
	}
	return s, nil
}

func ClearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
