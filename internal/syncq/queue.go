// Package syncq holds player actions that could not reach the server, for
// replay once it is reachable again.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"tycoon/internal/cli"
	"tycoon/internal/game"
)

const maxQueued = 1000

type Command struct {
	PlayerID string      `json:"player_id"`
	Action   game.Action `json:"action"`
	QueuedAt time.Time   `json:"queued_at"`
}

func queuePath() (string, error) {
	dir, err := cli.BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// Push appends one command. The oldest commands are dropped past maxQueued.
func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	commands = append(commands, cmd)
	if len(commands) > maxQueued {
		commands = commands[len(commands)-maxQueued:]
	}
	return Save(commands)
}

// Split separates one player's commands from everyone else's, keeping order.
func Split(commands []Command, playerID string) (mine []Command, rest []Command) {
	for _, c := range commands {
		if c.PlayerID == playerID {
			mine = append(mine, c)
		} else {
			rest = append(rest, c)
		}
	}
	return mine, rest
}

func Actions(commands []Command) []game.Action {
	out := make([]game.Action, 0, len(commands))
	for _, c := range commands {
		out = append(out, c.Action)
	}
	return out
}
