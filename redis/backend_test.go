package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/apiclient/credential"
	"github.com/kbukum/apiclient/encryption"
	"github.com/kbukum/apiclient/logger"
	"github.com/kbukum/apiclient/observability"
)

// newTestClient creates a redis.Client backed by miniredis for testing.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	cfg := Config{
		Enabled: true,
		Addr:    mini.Addr(),
	}
	client, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

func TestCredentialBackend_ReadWriteDelete(t *testing.T) {
	client, mini := newTestClient(t)
	b := NewCredentialBackend(client, "apiclient", 0)
	ctx := context.Background()

	if _, err := b.Read(ctx, "creds"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	if err := b.Write(ctx, "creds", []byte(`{"access":"a","refresh":"r"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !mini.Exists("apiclient:creds") {
		t.Error("expected prefixed key in redis")
	}

	got, err := b.Read(ctx, "creds")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != `{"access":"a","refresh":"r"}` {
		t.Errorf("got %s", got)
	}

	if err := b.Delete(ctx, "creds"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := b.Delete(ctx, "creds"); err != nil {
		t.Errorf("second Delete: got %v, want nil", err)
	}
	if _, err := b.Read(ctx, "creds"); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestCredentialBackend_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	b := NewCredentialBackend(client, "", time.Hour)
	ctx := context.Background()

	if err := b.Write(ctx, "creds", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if ttl := mini.TTL("creds"); ttl != time.Hour {
		t.Errorf("got ttl %v, want 1h", ttl)
	}
	mini.FastForward(2 * time.Hour)
	if _, err := b.Read(ctx, "creds"); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after expiry", err)
	}
}

func TestCredentialBackend_WithStore(t *testing.T) {
	client, mini := newTestClient(t)
	cipher, err := encryption.New("store-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store := credential.NewStore(NewCredentialBackend(client, "app", 0), credential.WithSealer(cipher))
	ctx := context.Background()

	pair := credential.Pair{Access: "a", Refresh: "r"}
	store.Save(ctx, pair)

	raw, _ := mini.Get("app:" + credential.DefaultKey)
	if raw == "" || raw == `{"access":"a","refresh":"r"}` {
		t.Error("expected a sealed record in redis")
	}

	got, ok := store.Load(ctx)
	if !ok || got != pair {
		t.Errorf("got %+v, want %+v", got, pair)
	}

	store.Clear(ctx)
	if mini.Exists("app:" + credential.DefaultKey) {
		t.Error("expected record to be removed")
	}
}

func TestCredentialBackend_ServerDown(t *testing.T) {
	client, mini := newTestClient(t)
	b := NewCredentialBackend(client, "", 0)
	mini.Close()

	if _, err := b.Read(context.Background(), "creds"); err == nil || errors.Is(err, credential.ErrNotFound) {
		t.Errorf("got %v, want a connection error", err)
	}
}

func TestClient_CheckHealth(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()

	if h := client.CheckHealth(ctx); h.Status != observability.HealthStatusUp {
		t.Errorf("got %s, want up", h.Status)
	}
	mini.Close()
	if h := client.CheckHealth(ctx); h.Status != observability.HealthStatusDown {
		t.Errorf("got %s, want down", h.Status)
	}
	_ = client.Close()
	if h := client.CheckHealth(ctx); h.Message != "client closed" {
		t.Errorf("got %q, want client closed", h.Message)
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips validation", Config{}, false},
		{"missing addr", Config{Enabled: true}, true},
		{"bad ttl", Config{Enabled: true, Addr: "x:1", TTL: "soon"}, true},
		{"valid", Config{Enabled: true, Addr: "x:1", TTL: "24h"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg := Config{TTL: "2h"}
	if cfg.RecordTTL() != 2*time.Hour {
		t.Errorf("got %v, want 2h", cfg.RecordTTL())
	}
	cfg.ApplyDefaults()
	if cfg.KeyPrefix != "apiclient" {
		t.Errorf("got prefix %q, want apiclient", cfg.KeyPrefix)
	}
}
