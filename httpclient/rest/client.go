package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/apiclient/credential"
	apierrors "github.com/kbukum/apiclient/errors"
	"github.com/kbukum/apiclient/httpclient"
	"github.com/kbukum/apiclient/logger"
	"github.com/kbukum/apiclient/observability"
	"github.com/kbukum/apiclient/refresh"
	"github.com/kbukum/apiclient/resilience"
)

// RequestIDHeader carries the id shared by every attempt of a logical call.
const RequestIDHeader = "X-Request-ID"

// Client is the authenticated request pipeline.
type Client struct {
	http    *httpclient.Client
	store   *credential.Store
	coord   *refresh.Coordinator
	policy  resilience.RetryPolicy
	sleep   resilience.Sleeper
	log     *logger.Logger
	inst    *observability.Instruments
	renewer refresh.Renewer

	renewPath    string
	renewTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s resilience.Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// WithInstruments records call spans and metrics.
func WithInstruments(inst *observability.Instruments) Option {
	return func(c *Client) { c.inst = inst }
}

// WithRenewer replaces the HTTP renewal exchange.
func WithRenewer(r refresh.Renewer) Option {
	return func(c *Client) { c.renewer = r }
}

// WithRenewPath overrides the renewal endpoint path.
func WithRenewPath(path string) Option {
	return func(c *Client) { c.renewPath = path }
}

// WithRenewTimeout bounds each renewal exchange.
func WithRenewTimeout(d time.Duration) Option {
	return func(c *Client) { c.renewTimeout = d }
}

// New creates a pipeline from the given transport config.
// JSON headers are applied automatically.
func New(cfg httpclient.Config, store *credential.Store, opts ...Option) (*Client, error) {
	headers := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}
	cfg.Headers = headers

	transport, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewFromClient(transport, store, opts...), nil
}

// NewFromClient creates a pipeline over an existing transport. The pipeline
// owns a refresh coordinator; call Close to stop it.
func NewFromClient(transport *httpclient.Client, store *credential.Store, opts ...Option) *Client {
	c := &Client{
		http:   transport,
		store:  store,
		policy: resilience.DefaultRetryPolicy(),
		sleep:  resilience.Sleep,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.log
	c.log = base.WithComponent("rest")
	if c.renewer == nil {
		c.renewer = refresh.NewHTTPRenewer(transport, c.renewPath)
	}
	c.coord = refresh.New(store, c.renewer,
		refresh.WithLogger(base),
		refresh.WithInstruments(c.inst),
		refresh.WithRenewTimeout(c.renewTimeout),
	)
	return c
}

// HTTP returns the underlying transport.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Store returns the credential store.
func (c *Client) Store() *credential.Store {
	return c.store
}

// Coordinator returns the refresh coordinator.
func (c *Client) Coordinator() *refresh.Coordinator {
	return c.coord
}

// Close stops the refresh coordinator. Calls waiting on a renewal fail with
// client_closed.
func (c *Client) Close() error {
	return c.coord.Close()
}

// Do runs one logical call. The returned error is always an *errors.Error.
func (c *Client) Do(ctx context.Context, call Call) (*httpclient.Response, error) {
	requestID := uuid.NewString()
	start := time.Now()
	ctx, span := c.inst.StartCall(ctx, call.Method, call.Path, requestID)
	log := c.log.WithFields(logger.Fields(
		logger.FieldRequestID, requestID,
		logger.FieldMethod, call.Method,
		logger.FieldPath, call.Path,
	))

	renewed := false
	resp, err := resilience.Retry(ctx, c.policy,
		func(int) (*httpclient.Response, error) {
			return c.attempt(ctx, call, requestID, &renewed, log)
		},
		resilience.Enabled(!call.Options.NoRetry),
		resilience.WithSleeper(c.sleep),
		resilience.OnRetry(func(attempt int, err error, delay time.Duration) {
			status := 0
			if e, ok := apierrors.From(err); ok {
				status = e.StatusCode
			}
			log.Warn("transient failure, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldDelay, delay.Milliseconds(),
				logger.FieldStatus, status,
			))
			c.inst.RecordRetry(ctx, call.Method, attempt, status)
		}),
	)
	if err != nil {
		nerr := normalize(ctx, err)
		log.Debug("call failed", logger.DurationFields(time.Since(start),
			logger.FieldCode, nerr.Code,
			logger.FieldStatus, nerr.StatusCode,
		))
		c.inst.EndCall(ctx, span, call.Method, nerr, time.Since(start))
		return nil, nerr
	}
	c.inst.EndCall(ctx, span, call.Method, nil, time.Since(start))
	return resp, nil
}

// attempt issues the call once. A 401 on an authenticated call that has not
// been renewed yet waits for a fresh credential and re-issues once. Without a
// stored pair there is nothing to renew and the 401 is returned as-is.
func (c *Client) attempt(ctx context.Context, call Call, requestID string, renewed *bool, log *logger.Logger) (*httpclient.Response, error) {
	var token string
	if !call.Options.SkipAuth {
		token, _ = c.store.ValidAccessToken(ctx)
	}

	resp, err := c.send(ctx, call, requestID, token)
	if err == nil {
		return resp, nil
	}
	nerr := httpclient.Normalize(err)
	if call.Options.SkipAuth || *renewed || nerr.Kind != apierrors.KindHTTP || nerr.StatusCode != http.StatusUnauthorized {
		return nil, nerr
	}

	if _, ok := c.store.Load(ctx); !ok {
		return nil, nerr
	}

	*renewed = true
	log.Debug("unauthorized, awaiting fresh credential")
	fresh, err := c.coord.AwaitFreshCredential(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, call, requestID, fresh)
	if err != nil {
		return nil, httpclient.Normalize(err)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, call Call, requestID, token string) (*httpclient.Response, error) {
	headers := make(map[string]string, len(call.Headers)+1)
	for k, v := range call.Headers {
		headers[k] = v
	}
	headers[RequestIDHeader] = requestID

	req := httpclient.Request{
		Method:  call.Method,
		Path:    call.Path,
		Headers: headers,
		Query:   call.Query,
		Body:    call.Body,
		Timeout: call.Options.Timeout,
	}
	if token != "" {
		req.Auth = httpclient.Bearer(token)
	}
	return c.http.Do(ctx, req)
}

// normalize converts the final error of a call. A context error surfacing
// from a backoff wait means the caller gave up.
func normalize(ctx context.Context, err error) *apierrors.Error {
	if _, ok := apierrors.From(err); !ok && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return apierrors.Canceled(err)
	}
	return httpclient.Normalize(err)
}
