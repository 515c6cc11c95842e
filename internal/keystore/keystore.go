// Package keystore resolves API key ids to their bcrypt hashes. The gateway
// looks a key up by id and checks the presented secret against the hash, so
// the secret itself is never stored anywhere.
package keystore

import (
	"context"
	"errors"
)

// ErrKeyNotFound reports an id with no stored hash.
var ErrKeyNotFound = errors.New("keystore: unknown api key")

// Store looks up the hash for an API key id.
type Store interface {
	// Lookup returns the stored hash for keyID, or ErrKeyNotFound when the
	// id is unknown.
	Lookup(ctx context.Context, keyID string) (string, error)
}

// Static serves key hashes from memory. The gateway loads it from its
// configuration file at startup.
type Static struct {
	hashes map[string]string
}

// NewStatic builds a static store from an id-to-hash map. The map is copied.
func NewStatic(hashes map[string]string) *Static {
	m := make(map[string]string, len(hashes))
	for id, hash := range hashes {
		m[id] = hash
	}
	return &Static{hashes: m}
}

func (s *Static) Lookup(_ context.Context, keyID string) (string, error) {
	hash, ok := s.hashes[keyID]
	if !ok || hash == "" {
		return "", ErrKeyNotFound
	}
	return hash, nil
}
