package keystore

import (
	"context"
	"fmt"

	"fluxdbc"
)

// Database looks hashes up in an api_keys table reached through a connection
// factory. Each lookup dials its own connection; hand it a pool-wrapped
// factory to cap or reuse them.
type Database struct {
	factory fluxdbc.ConnectionFactory
}

// NewDatabase builds a store over the given factory.
func NewDatabase(factory fluxdbc.ConnectionFactory) *Database {
	if factory == nil {
		panic("keystore: nil factory")
	}
	return &Database{factory: factory}
}

func (d *Database) Lookup(ctx context.Context, keyID string) (string, error) {
	// The contract carries no bind parameters, so the id is restricted to a
	// safe alphabet before it is inlined. An id outside that alphabet cannot
	// match a stored row anyway.
	if !validKeyID(keyID) {
		return "", ErrKeyNotFound
	}

	conn, err := d.factory.Create().Await(ctx)
	if err != nil {
		return "", fmt.Errorf("keystore: connect: %w", err)
	}
	defer conn.Close(context.Background())

	res, err := conn.Execute(ctx, fmt.Sprintf(
		"SELECT key_hash FROM api_keys WHERE key_id = '%s'", keyID))
	if err != nil {
		return "", fmt.Errorf("keystore: lookup %s: %w", keyID, err)
	}
	stream, err := res.Map(func(row fluxdbc.Row, _ *fluxdbc.RowMetadata) (any, error) {
		v, err := row.Get(0)
		if err != nil {
			return nil, err
		}
		return hashString(v), nil
	})
	if err != nil {
		return "", fmt.Errorf("keystore: project hash: %w", err)
	}
	defer stream.Close(context.Background())

	if !stream.Next(ctx) {
		if err := stream.Err(); err != nil {
			return "", fmt.Errorf("keystore: read hash: %w", err)
		}
		return "", ErrKeyNotFound
	}
	hash, _ := stream.Value().(string)
	if hash == "" {
		return "", ErrKeyNotFound
	}
	return hash, nil
}

func validKeyID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		ok := r == '_' || r == '-' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') ||
			('0' <= r && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}

// hashString unwraps the hash column; drivers may hand it back as []byte.
func hashString(v any) string {
	switch h := v.(type) {
	case string:
		return h
	case []byte:
		return string(h)
	default:
		return ""
	}
}
