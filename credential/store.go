package credential

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kbukum/apiclient/encryption"
	"github.com/kbukum/apiclient/logger"
)

// DefaultKey is the well-known key the pair is stored under.
const DefaultKey = "apiclient.credentials"

// Store persists and validates the credential pair.
type Store struct {
	backend Backend
	key     string
	sealer  encryption.Sealer
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithSealer encrypts the stored record.
func WithSealer(sealer encryption.Sealer) Option {
	return func(s *Store) { s.sealer = sealer }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = logger.OrNop(l).WithComponent("credential") }
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the pair. It never fails: losing the pair only forces
// re-authentication, so storage errors are logged and swallowed. An
// incomplete pair is not persisted and clears any stored one.
func (s *Store) Save(ctx context.Context, pair Pair) {
	if !pair.Complete() {
		s.log.Warn("refusing to save incomplete credential pair")
		s.Clear(ctx)
		return
	}
	data, err := json.Marshal(pair)
	if err != nil {
		s.log.WithError(err).Warn("encode credential pair")
		return
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data, []byte(s.key)); err != nil {
			s.log.WithError(err).Warn("seal credential pair")
			return
		}
	}
	if err := s.backend.Write(ctx, s.key, data); err != nil {
		s.log.WithError(err).Warn("persist credential pair")
	}
}

// Load returns the stored pair if it is structurally valid. Anything else
// is cleared and reported as absent.
func (s *Store) Load(ctx context.Context) (Pair, bool) {
	data, err := s.backend.Read(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return Pair{}, false
	}
	if err != nil {
		s.log.WithError(err).Warn("read credential pair")
		return Pair{}, false
	}

	if s.sealer != nil {
		if data, err = s.sealer.Open(data, []byte(s.key)); err != nil {
			s.log.WithError(err).Warn("stored credential pair cannot be opened, clearing")
			s.Clear(ctx)
			return Pair{}, false
		}
	}

	var pair Pair
	if err := json.Unmarshal(data, &pair); err != nil || !pair.Complete() {
		s.log.Warn("stored credential pair is invalid, clearing")
		s.Clear(ctx)
		return Pair{}, false
	}
	return pair, true
}

// Clear removes any stored pair. It is idempotent.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.log.WithError(err).Warn("clear credential pair")
	}
}

// IsExpired reports whether token expires at or before now+buffer. Tokens that
// cannot be decoded or carry no exp claim are expired.
func (s *Store) IsExpired(token string, buffer time.Duration) bool {
	claims, err := DecodeClaims(token)
	if err != nil || !claims.HasExpiry() {
		return true
	}
	return !claims.ExpiresAt.After(s.now().Add(buffer))
}

// ValidAccessToken returns the short-lived token if present and unexpired.
func (s *Store) ValidAccessToken(ctx context.Context) (string, bool) {
	pair, ok := s.Load(ctx)
	if !ok || s.IsExpired(pair.Access, 0) {
		return "", false
	}
	return pair.Access, true
}

// Claims decodes a token. It is recomputed on every call.
func (s *Store) Claims(token string) (Claims, error) {
	return DecodeClaims(token)
}
