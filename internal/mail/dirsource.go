package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DirSource reads messages from per-category JSON files on disk:
// <root>/<category>/*.json, each file holding one Message or an array of
// them. Used for local runs and tests; real mailbox connectors implement
// Source behind the same interface.
type DirSource struct {
	root string
}

// NewDirSource creates a directory-backed source rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// Fetch returns all messages for category dated at or after since, ordered
// by date.
func (s *DirSource) Fetch(ctx context.Context, category string, since time.Time) ([]Message, error) {
	dir := filepath.Join(s.root, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mail directory %s: %w", dir, err)
	}

	var messages []Message
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		batch, err := decodeMessages(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		for _, m := range batch {
			if m.Date.Before(since) {
				continue
			}
			messages = append(messages, m)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Date.Before(messages[j].Date)
	})
	return messages, nil
}

func decodeMessages(data []byte) ([]Message, error) {
	var many []Message
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one Message
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []Message{one}, nil
}

var _ Source = (*DirSource)(nil)
