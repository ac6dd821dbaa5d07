package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/apiclient/credential"
)

// CredentialBackend stores the credential record in Redis.
type CredentialBackend struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

// NewCredentialBackend creates a backend. Keys are "<keyPrefix>:<key>". A
// positive ttl expires the record; zero keeps it until cleared.
func NewCredentialBackend(client *Client, keyPrefix string, ttl time.Duration) *CredentialBackend {
	return &CredentialBackend{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (b *CredentialBackend) fullKey(key string) string {
	if b.keyPrefix == "" {
		return key
	}
	return b.keyPrefix + ":" + key
}

// Read implements credential.Backend.
func (b *CredentialBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.fullKey(key))
	if errors.Is(err, goredis.Nil) {
		return nil, credential.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis credential read %q: %w", key, err)
	}
	return data, nil
}

// Write implements credential.Backend.
func (b *CredentialBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, b.fullKey(key), data, b.ttl); err != nil {
		return fmt.Errorf("redis credential write %q: %w", key, err)
	}
	return nil
}

// Delete implements credential.Backend. Deleting a missing key is not an error.
func (b *CredentialBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.fullKey(key)); err != nil {
		return fmt.Errorf("redis credential delete %q: %w", key, err)
	}
	return nil
}

var _ credential.Backend = (*CredentialBackend)(nil)
