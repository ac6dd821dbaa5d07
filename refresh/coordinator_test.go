package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/apiclient/credential"
	apierrors "github.com/kbukum/apiclient/errors"
)

func mintToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// gatedRenewer blocks every exchange until release is closed.
type gatedRenewer struct {
	calls   atomic.Int32
	release chan struct{}
	pair    credential.Pair
	err     error
}

func newGatedRenewer(pair credential.Pair, err error) *gatedRenewer {
	return &gatedRenewer{release: make(chan struct{}), pair: pair, err: err}
}

func (g *gatedRenewer) Renew(ctx context.Context, _ string) (credential.Pair, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return credential.Pair{}, ctx.Err()
	}
	return g.pair, g.err
}

func newStoreWith(t *testing.T, pair credential.Pair) *credential.Store {
	t.Helper()
	store := credential.NewStore(credential.NewMemoryBackend())
	if pair.Complete() {
		store.Save(context.Background(), pair)
	}
	return store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

type result struct {
	token string
	err   error
}

func awaitAll(c *Coordinator, n int) <-chan result {
	out := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			token, err := c.AwaitFreshCredential(context.Background(), "")
			out <- result{token, err}
		}()
	}
	return out
}

func TestCoordinator_SingleFlight(t *testing.T) {
	stale := credential.Pair{Access: mintToken(t, "u", time.Now().Add(-time.Minute)), Refresh: "refresh-1"}
	fresh := credential.Pair{Access: mintToken(t, "u", time.Now().Add(time.Hour)), Refresh: "refresh-2"}
	store := newStoreWith(t, stale)
	renewer := newGatedRenewer(fresh, nil)
	c := New(store, renewer)
	defer c.Close()

	const n = 8
	results := awaitAll(c, n)
	waitFor(t, func() bool { return c.Pending() == n })

	if c.State() != Refreshing {
		t.Errorf("got state %v, want refreshing", c.State())
	}
	close(renewer.release)

	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.token != fresh.Access {
			t.Errorf("got a different token than the renewed one")
		}
	}
	if got := renewer.calls.Load(); got != 1 {
		t.Errorf("got %d renewal exchanges, want 1", got)
	}
	if c.Renewals() != 1 {
		t.Errorf("got %d renewals started, want 1", c.Renewals())
	}
	waitFor(t, func() bool { return c.State() == Idle })

	stored, ok := store.Load(context.Background())
	if !ok || stored != fresh {
		t.Errorf("got stored %+v, want renewed pair", stored)
	}
}

func TestCoordinator_FailureClearsAndIsNotRetried(t *testing.T) {
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "refresh-1"})
	renewer := newGatedRenewer(credential.Pair{}, apierrors.HTTP(401, "", ""))
	close(renewer.release)
	c := New(store, renewer)
	defer c.Close()

	_, err := c.AwaitFreshCredential(context.Background(), "")
	e, ok := apierrors.From(err)
	if !ok {
		t.Fatalf("got %T, want *errors.Error", err)
	}
	if e.Code != apierrors.ErrCodeTokenRevoked || !e.IsAuthError() {
		t.Errorf("got %s/%d, want token_revoked auth error", e.Code, e.StatusCode)
	}
	if _, ok := store.Load(context.Background()); ok {
		t.Error("expected store to be cleared")
	}

	_, err = c.AwaitFreshCredential(context.Background(), "")
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("got %v, want ErrNoRefreshToken in chain", err)
	}
	if got := renewer.calls.Load(); got != 1 {
		t.Errorf("got %d exchanges, want 1", got)
	}
}

func TestCoordinator_FailureReachesEveryWaiter(t *testing.T) {
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "r"})
	renewer := newGatedRenewer(credential.Pair{}, errors.New("boom"))
	c := New(store, renewer)
	defer c.Close()

	const n = 5
	results := awaitAll(c, n)
	waitFor(t, func() bool { return c.Pending() == n })
	close(renewer.release)

	for i := 0; i < n; i++ {
		r := <-results
		if !apierrors.HasCode(r.err, apierrors.ErrCodeTokenRevoked) {
			t.Errorf("got %v, want token_revoked", r.err)
		}
	}
}

func TestCoordinator_NoStoredPair(t *testing.T) {
	renewer := newGatedRenewer(credential.Pair{}, nil)
	c := New(newStoreWith(t, credential.Pair{}), renewer)
	defer c.Close()

	_, err := c.AwaitFreshCredential(context.Background(), "")
	if !apierrors.IsAuth(err) {
		t.Errorf("got %v, want auth error", err)
	}
	if renewer.calls.Load() != 0 {
		t.Error("renewer must not be called without a refresh token")
	}
}

func TestCoordinator_ExpiredRefreshToken(t *testing.T) {
	store := newStoreWith(t, credential.Pair{
		Access:  "a",
		Refresh: mintToken(t, "u", time.Now().Add(-time.Hour)),
	})
	renewer := newGatedRenewer(credential.Pair{}, nil)
	c := New(store, renewer)
	defer c.Close()

	_, err := c.AwaitFreshCredential(context.Background(), "")
	if !errors.Is(err, ErrRefreshExpired) {
		t.Errorf("got %v, want ErrRefreshExpired", err)
	}
	if renewer.calls.Load() != 0 {
		t.Error("renewer must not be called with an expired refresh token")
	}
}

func TestCoordinator_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	access := mintToken(t, "u", time.Now().Add(time.Hour))
	store := newStoreWith(t, credential.Pair{Access: "old", Refresh: "keep-me"})
	c := New(store, RenewerFunc(func(context.Context, string) (credential.Pair, error) {
		return credential.Pair{Access: access}, nil
	}))
	defer c.Close()

	if _, err := c.AwaitFreshCredential(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := store.Load(context.Background())
	if stored.Refresh != "keep-me" {
		t.Errorf("got refresh %q, want keep-me", stored.Refresh)
	}
}

func TestCoordinator_WaiterCancel(t *testing.T) {
	fresh := credential.Pair{Access: mintToken(t, "u", time.Now().Add(time.Hour)), Refresh: "r2"}
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "r"})
	renewer := newGatedRenewer(fresh, nil)
	c := New(store, renewer)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := c.AwaitFreshCredential(ctx, "")
		canceled <- err
	}()
	others := awaitAll(c, 1)
	waitFor(t, func() bool { return c.Pending() == 2 })

	cancel()
	if err := <-canceled; !apierrors.HasCode(err, apierrors.ErrCodeCanceled) {
		t.Errorf("got %v, want canceled", err)
	}

	close(renewer.release)
	if r := <-others; r.err != nil || r.token != fresh.Access {
		t.Errorf("remaining waiter: got %+v", r)
	}
}

func TestCoordinator_RevokeDuringRenewal(t *testing.T) {
	fresh := credential.Pair{Access: mintToken(t, "u", time.Now().Add(time.Hour)), Refresh: "r2"}
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "r"})
	renewer := newGatedRenewer(fresh, nil)
	c := New(store, renewer)
	defer c.Close()

	results := awaitAll(c, 2)
	waitFor(t, func() bool { return c.Pending() == 2 })

	if err := c.Revoke(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(renewer.release)

	for i := 0; i < 2; i++ {
		r := <-results
		if !errors.Is(r.err, ErrSuperseded) {
			t.Errorf("got %v, want ErrSuperseded", r.err)
		}
	}
	waitFor(t, func() bool { return c.State() == Idle })
	if _, ok := store.Load(context.Background()); ok {
		t.Error("renewed pair must not be saved after revoke")
	}
}

func TestCoordinator_InstallDuringRenewal(t *testing.T) {
	renewed := credential.Pair{Access: mintToken(t, "renewed", time.Now().Add(time.Hour)), Refresh: "r2"}
	installed := credential.Pair{Access: mintToken(t, "login", time.Now().Add(time.Hour)), Refresh: "r3"}
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "r"})
	renewer := newGatedRenewer(renewed, nil)
	c := New(store, renewer)
	defer c.Close()

	results := awaitAll(c, 1)
	waitFor(t, func() bool { return c.Pending() == 1 })

	if err := c.Install(context.Background(), installed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(renewer.release)

	if r := <-results; r.err != nil || r.token != installed.Access {
		t.Errorf("got %+v, want installed access token", r)
	}
	waitFor(t, func() bool { return c.State() == Idle })
	if stored, _ := store.Load(context.Background()); stored != installed {
		t.Errorf("got stored %+v, want installed pair", stored)
	}
}

func TestCoordinator_InstallIncomplete(t *testing.T) {
	c := New(newStoreWith(t, credential.Pair{}), newGatedRenewer(credential.Pair{}, nil))
	defer c.Close()

	if err := c.Install(context.Background(), credential.Pair{Access: "only"}); !errors.Is(err, ErrIncompletePair) {
		t.Errorf("got %v, want ErrIncompletePair", err)
	}
}

func TestCoordinator_Close(t *testing.T) {
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "r"})
	renewer := newGatedRenewer(credential.Pair{}, nil)
	c := New(store, renewer)

	results := awaitAll(c, 3)
	waitFor(t, func() bool { return c.Pending() == 3 })

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if r := <-results; !apierrors.HasCode(r.err, apierrors.ErrCodeClientClosed) {
			t.Errorf("got %v, want client_closed", r.err)
		}
	}

	if _, err := c.AwaitFreshCredential(context.Background(), ""); !apierrors.HasCode(err, apierrors.ErrCodeClientClosed) {
		t.Errorf("after close: got %v, want client_closed", err)
	}
	if err := c.Install(context.Background(), credential.Pair{Access: "a", Refresh: "r"}); !apierrors.HasCode(err, apierrors.ErrCodeClientClosed) {
		t.Errorf("install after close: got %v, want client_closed", err)
	}
	if err := c.Revoke(context.Background()); err != nil {
		t.Errorf("revoke after close: unexpected error %v", err)
	}
	if _, ok := store.Load(context.Background()); ok {
		t.Error("revoke after close must still clear the store")
	}
	_ = c.Close()
}

func TestCoordinator_SequentialRenewals(t *testing.T) {
	var n atomic.Int32
	store := newStoreWith(t, credential.Pair{Access: "a", Refresh: "r"})
	c := New(store, RenewerFunc(func(context.Context, string) (credential.Pair, error) {
		i := n.Add(1)
		return credential.Pair{Access: fmt.Sprintf("access-%d", i), Refresh: "r"}, nil
	}))
	defer c.Close()

	for i := 1; i <= 3; i++ {
		token, err := c.AwaitFreshCredential(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := fmt.Sprintf("access-%d", i); token != want {
			t.Errorf("got %s, want %s", token, want)
		}
	}
}

func TestCoordinator_AlreadyRenewed(t *testing.T) {
	rejected := mintToken(t, "u", time.Now().Add(-time.Minute))
	current := credential.Pair{Access: mintToken(t, "u", time.Now().Add(time.Hour)), Refresh: "r2"}
	renewed := credential.Pair{Access: mintToken(t, "u", time.Now().Add(2*time.Hour)), Refresh: "r3"}
	store := newStoreWith(t, current)
	renewer := newGatedRenewer(renewed, nil)
	close(renewer.release)
	c := New(store, renewer)
	defer c.Close()

	token, err := c.AwaitFreshCredential(context.Background(), rejected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != current.Access {
		t.Errorf("got a different token than the stored one")
	}
	if got := renewer.calls.Load(); got != 0 {
		t.Errorf("got %d exchanges, want 0 when the store already moved on", got)
	}

	// The stored token itself was rejected: renew.
	token, err = c.AwaitFreshCredential(context.Background(), current.Access)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != renewed.Access {
		t.Errorf("got a different token than the renewed one")
	}
	if got := renewer.calls.Load(); got != 1 {
		t.Errorf("got %d exchanges, want 1", got)
	}
}

func TestDrain(t *testing.T) {
	var queue []*waiter
	for i := 0; i < 4; i++ {
		queue = append(queue, &waiter{id: fmt.Sprint(i), ch: make(chan outcome, 1)})
	}
	drain(queue, outcome{token: "t"})

	var wg sync.WaitGroup
	for _, w := range queue {
		wg.Add(1)
		go func(w *waiter) {
			defer wg.Done()
			select {
			case out := <-w.ch:
				if out.token != "t" {
					t.Errorf("waiter %s: got %q, want t", w.id, out.token)
				}
			default:
				t.Errorf("waiter %s was not notified", w.id)
			}
		}(w)
	}
	wg.Wait()
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Refreshing.String() != "refreshing" {
		t.Errorf("got %s/%s", Idle, Refreshing)
	}
}
