package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/geb2701/storefront/internal/domain"
)

// StoreName is the fixed prefix every persisted cart key starts with.
const StoreName = "cart-store"

// StateKey returns the storage key for a session's cart.
func StateKey(sessionID string) string {
	return StoreName + ":" + sessionID
}

// StateRepository persists the item collection of a cart. Only items are
// stored; UI flags such as isOpen are never written.
type StateRepository interface {
	// Load returns the items stored under key, or an apperrors.NotFound error.
	Load(ctx context.Context, key string) (domain.Lines, error)

	// Save overwrites the items stored under key.
	Save(ctx context.Context, key string, items domain.Lines) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// StateVersion is bumped whenever the envelope layout changes.
const StateVersion = 0

// envelope is the persisted blob: {"state":{"items":[...]},"version":0}.
type envelope struct {
	State struct {
		Items domain.Lines `json:"items"`
	} `json:"state"`
	Version int `json:"version"`
}

// Encode serialises items into the persisted envelope.
func Encode(items domain.Lines) ([]byte, error) {
	var env envelope
	env.State.Items = items
	if env.State.Items == nil {
		env.State.Items = domain.Lines{}
	}
	env.Version = StateVersion
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal cart state: %w", err)
	}
	return data, nil
}

// Decode parses a persisted envelope. Envelopes written by a newer layout are
// rejected rather than half-read.
func Decode(data []byte) (domain.Lines, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal cart state: %w", err)
	}
	if env.Version > StateVersion {
		return nil, fmt.Errorf("unsupported cart state version %d", env.Version)
	}
	if env.State.Items == nil {
		return domain.Lines{}, nil
	}
	return env.State.Items, nil
}
