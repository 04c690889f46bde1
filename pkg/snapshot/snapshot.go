// Package snapshot periodically persists the relay's shared world state
// so a restarted instance can serve constellations and posts without an
// empty cold start.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Snapshot is one persisted capture. Entity payloads stay raw so the
// package does not depend on domain types.
type Snapshot struct {
	Version  string                     `json:"version"`
	TakenAt  time.Time                  `json:"taken_at"`
	Entities map[string]json.RawMessage `json:"entities"`
}

// SetEntity marshals v under the given key.
func (s *Snapshot) SetEntity(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot entity %q: %w", key, err)
	}
	if s.Entities == nil {
		s.Entities = make(map[string]json.RawMessage)
	}
	s.Entities[key] = data
	return nil
}

// Entity unmarshals the payload stored under key into out. Missing keys
// are not an error; out is left untouched.
func (s *Snapshot) Entity(key string, out interface{}) error {
	raw, ok := s.Entities[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot entity %q: %w", key, err)
	}
	return nil
}

// Storage defines where captures are kept.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

const namePrefix = "snapshot-"

// Service takes and restores snapshots against a storage backend.
type Service struct {
	storage Storage
	version string
}

func NewService(storage Storage, version string) *Service {
	return &Service{
		storage: storage,
		version: version,
	}
}

// Take persists the snapshot and returns its storage name.
func (s *Service) Take(ctx context.Context, snap *Snapshot) (string, error) {
	snap.Version = s.version
	snap.TakenAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("%s%s.json", namePrefix, snap.TakenAt.UTC().Format("20060102-150405"))
	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return name, nil
}

// Restore loads a named capture.
func (s *Service) Restore(ctx context.Context, name string) (*Snapshot, error) {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Latest restores the most recent capture, or nil when none exist.
func (s *Service) Latest(ctx context.Context) (*Snapshot, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return s.Restore(ctx, names[len(names)-1])
}

// List returns capture names, oldest first. Timestamped names sort
// lexicographically.
func (s *Service) List(ctx context.Context) ([]string, error) {
	names, err := s.storage.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Prune removes all but the newest keep captures.
func (s *Service) Prune(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}

	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}

	for _, name := range names[:len(names)-keep] {
		if err := s.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to prune snapshot %s: %w", name, err)
		}
	}
	return nil
}
