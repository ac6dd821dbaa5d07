package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/apiclient/credential"
	apierrors "github.com/kbukum/apiclient/errors"
	"github.com/kbukum/apiclient/logger"
	"github.com/kbukum/apiclient/observability"
)

// DefaultRenewTimeout bounds one renewal exchange.
const DefaultRenewTimeout = 30 * time.Second

var (
	// ErrNoRefreshToken is the renewal failure when no pair is stored.
	ErrNoRefreshToken = errors.New("refresh: no stored refresh token")
	// ErrRefreshExpired is the renewal failure when the stored long-lived
	// token is itself expired.
	ErrRefreshExpired = errors.New("refresh: refresh token expired")
	// ErrSuperseded is reported to waiters when credentials were revoked
	// while a renewal was in flight.
	ErrSuperseded = errors.New("refresh: credentials changed during renewal")
	// ErrIncompletePair is returned by Install for a pair missing a token.
	ErrIncompletePair = errors.New("refresh: credential pair is incomplete")
)

// State is the coordinator state.
type State int32

const (
	Idle State = iota
	Refreshing
)

// String returns the state name.
func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

type outcome struct {
	token string
	err   error
}

type waiter struct {
	id string
	// stale is the access token the server rejected.
	stale string
	// ch is buffered so draining never blocks on a caller that gave up.
	ch chan outcome
}

type command struct {
	ctx     context.Context
	install *credential.Pair
	done    chan struct{}
}

type renewal struct {
	generation uint64
	pair       credential.Pair
	err        error
	started    time.Time
}

// Coordinator serializes credential renewal and credential writes.
type Coordinator struct {
	store   *credential.Store
	renewer Renewer
	log     *logger.Logger
	inst    *observability.Instruments
	timeout time.Duration

	requests chan *waiter
	commands chan command
	results  chan renewal
	quit     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	state    atomic.Int32
	pending  atomic.Int32
	renewals atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = logger.OrNop(l).WithComponent("refresh") }
}

// WithInstruments records renewal spans and metrics.
func WithInstruments(inst *observability.Instruments) Option {
	return func(c *Coordinator) { c.inst = inst }
}

// WithRenewTimeout bounds each renewal exchange.
func WithRenewTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a Coordinator and starts its goroutine. Call Close to stop it.
func New(store *credential.Store, renewer Renewer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		renewer:  renewer,
		log:      logger.Nop(),
		timeout:  DefaultRenewTimeout,
		requests: make(chan *waiter),
		commands: make(chan command),
		results:  make(chan renewal),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

// State returns the current state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Pending returns the number of callers waiting on the in-flight renewal.
func (c *Coordinator) Pending() int { return int(c.pending.Load()) }

// Renewals returns the number of renewal exchanges started.
func (c *Coordinator) Renewals() int64 { return c.renewals.Load() }

// AwaitFreshCredential returns an access token to replace stale, the token
// the server just rejected. When Idle and the store already holds a different
// valid token (a renewal settled after stale was sent), that token is
// returned without a new exchange. Otherwise the caller joins the in-flight
// renewal, starting one if none is running. Cancelling ctx stops the wait but
// not the renewal.
func (c *Coordinator) AwaitFreshCredential(ctx context.Context, stale string) (string, error) {
	w := &waiter{id: uuid.NewString(), stale: stale, ch: make(chan outcome, 1)}
	select {
	case c.requests <- w:
	case <-ctx.Done():
		return "", apierrors.Canceled(ctx.Err())
	case <-c.stopped:
		return "", apierrors.ClientClosed()
	}

	select {
	case out := <-w.ch:
		return out.token, out.err
	case <-ctx.Done():
		c.log.Debug("caller stopped waiting for renewal", logger.Fields("waiter", w.id))
		return "", apierrors.Canceled(ctx.Err())
	}
}

// Install stores a pair obtained by logging in.
func (c *Coordinator) Install(ctx context.Context, pair credential.Pair) error {
	if !pair.Complete() {
		return ErrIncompletePair
	}
	return c.command(ctx, &pair)
}

// Revoke clears the stored pair. After Close it clears the store directly.
func (c *Coordinator) Revoke(ctx context.Context) error {
	return c.command(ctx, nil)
}

func (c *Coordinator) command(ctx context.Context, install *credential.Pair) error {
	cmd := command{ctx: ctx, install: install, done: make(chan struct{})}
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return apierrors.Canceled(ctx.Err())
	case <-c.stopped:
		if install != nil {
			return apierrors.ClientClosed()
		}
		c.store.Clear(ctx)
		return nil
	}
	<-cmd.done
	return nil
}

// Close stops the coordinator. Waiting callers fail with client_closed.
func (c *Coordinator) Close() error {
	c.once.Do(func() { close(c.quit) })
	<-c.stopped
	return nil
}

func (c *Coordinator) run() {
	defer close(c.stopped)

	var (
		queue      []*waiter
		generation uint64
		inflight   bool
	)
	for {
		select {
		case w := <-c.requests:
			if !inflight {
				if token, ok := c.store.ValidAccessToken(context.Background()); ok && token != w.stale {
					c.log.Debug("credential already renewed", logger.Fields("waiter", w.id))
					w.ch <- outcome{token: token}
					continue
				}
			}
			queue = append(queue, w)
			c.pending.Store(int32(len(queue)))
			if inflight {
				c.log.Debug("joined in-flight renewal", logger.Fields("waiter", w.id, logger.FieldWaiters, len(queue)))
				continue
			}
			inflight = true
			c.state.Store(int32(Refreshing))
			c.renewals.Add(1)
			c.log.Debug("starting renewal", logger.Fields("waiter", w.id))
			go c.renew(generation)

		case r := <-c.results:
			c.settle(r, generation, queue)
			queue = nil
			inflight = false
			c.pending.Store(0)
			c.state.Store(int32(Idle))

		case cmd := <-c.commands:
			generation++
			if cmd.install != nil {
				c.store.Save(cmd.ctx, *cmd.install)
				c.log.Info("credentials installed")
			} else {
				c.store.Clear(cmd.ctx)
				c.log.Info("credentials revoked")
			}
			close(cmd.done)

		case <-c.quit:
			drain(queue, outcome{err: apierrors.ClientClosed()})
			c.pending.Store(0)
			return
		}
	}
}

// renew performs one exchange on a context detached from any caller.
func (c *Coordinator) renew(generation uint64) {
	base, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	done := base.Done()
	go func() {
		select {
		case <-c.quit:
			cancel()
		case <-done:
		}
	}()
	ctx, span := c.inst.StartRenewal(base)
	defer span.End()

	r := renewal{generation: generation, started: time.Now()}
	current, ok := c.store.Load(ctx)
	switch {
	case !ok:
		r.err = ErrNoRefreshToken
	case refreshExpired(c.store, current.Refresh):
		r.err = ErrRefreshExpired
	default:
		r.pair, r.err = c.renewer.Renew(ctx, current.Refresh)
		if r.err == nil && r.pair.Access == "" {
			r.err = ErrIncompletePair
		}
		if r.pair.Refresh == "" {
			r.pair.Refresh = current.Refresh
		}
	}
	if r.err != nil {
		span.RecordError(r.err)
	}

	select {
	case c.results <- r:
	case <-c.quit:
	}
}

// refreshExpired reports whether a decodable long-lived token has expired.
// Opaque tokens are left for the server to judge.
func refreshExpired(store *credential.Store, token string) bool {
	claims, err := store.Claims(token)
	if err != nil || !claims.HasExpiry() {
		return false
	}
	return store.IsExpired(token, 0)
}

func (c *Coordinator) settle(r renewal, generation uint64, queue []*waiter) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	fields := logger.DurationFields(time.Since(r.started), logger.FieldWaiters, len(queue))
	var out outcome
	var result string
	switch {
	case r.generation != generation:
		result = observability.RenewalDiscarded
		if token, ok := c.store.ValidAccessToken(ctx); ok {
			out.token = token
		} else {
			out.err = apierrors.TokenRevoked(ErrSuperseded)
		}
		c.log.Info("renewal discarded, credentials changed while in flight", fields)

	case r.err != nil:
		result = observability.RenewalFailed
		c.store.Clear(ctx)
		out.err = apierrors.TokenRevoked(r.err)
		c.log.WithError(r.err).Warn("renewal failed, credentials cleared", fields)

	default:
		result = observability.RenewalSucceeded
		c.store.Save(ctx, r.pair)
		out.token = r.pair.Access
		c.log.Info("credentials renewed", fields)
	}

	drain(queue, out)
	c.inst.RecordRenewal(ctx, result, len(queue))
}

// drain delivers out to every waiter in arrival order.
func drain(queue []*waiter, out outcome) {
	for _, w := range queue {
		w.ch <- out
	}
}
