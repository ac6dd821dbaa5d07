package apitest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Endpoint paths.
const (
	LoginPath   = "/auth/token/"
	RefreshPath = "/auth/token/refresh/"
	MePath      = "/api/me"
)

// Server is the fake backend.
type Server struct {
	*httptest.Server

	engine     *gin.Engine
	secret     []byte
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu            sync.Mutex
	users         map[string]user
	refreshTokens map[string]struct{}
	requests      []Recorded
	renewCalls    int
	renewFail     bool
	renewHold     chan struct{}
	noRotation    bool
}

type user struct {
	password string
	tenant   string
}

// Recorded is one request seen by the server.
type Recorded struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HS256 signing key.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithClock sets the server time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithTTL sets access and refresh token lifetimes.
func WithTTL(access, refresh time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

// WithUser registers a login.
func WithUser(username, password, tenant string) Option {
	return func(s *Server) { s.users[username] = user{password: password, tenant: tenant} }
}

// WithoutRotation makes renewals return only a new access token.
func WithoutRotation() Option {
	return func(s *Server) { s.noRotation = true }
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		engine:        gin.New(),
		secret:        []byte("apitest-secret"),
		now:           time.Now,
		accessTTL:     5 * time.Minute,
		refreshTTL:    24 * time.Hour,
		users:         make(map[string]user),
		refreshTokens: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(s.record)
	s.engine.POST(LoginPath, s.login)
	s.engine.POST(RefreshPath, s.renew)
	s.engine.GET(MePath, s.RequireAuth, s.me)

	s.Server = httptest.NewServer(s.engine)
	t.Cleanup(s.Close)
	return s
}

// Handle registers a public route.
func (s *Server) Handle(method, path string, handlers ...gin.HandlerFunc) {
	s.engine.Handle(method, path, handlers...)
}

// HandleAuth registers a route behind RequireAuth.
func (s *Server) HandleAuth(method, path string, handlers ...gin.HandlerFunc) {
	s.engine.Handle(method, path, append([]gin.HandlerFunc{s.RequireAuth}, handlers...)...)
}

// FailRenewals makes the renewal endpoint reject every request.
func (s *Server) FailRenewals(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewFail = fail
}

// HoldRenewals blocks renewal responses until the returned func is called.
func (s *Server) HoldRenewals() (release func()) {
	hold := make(chan struct{})
	s.mu.Lock()
	s.renewHold = hold
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.renewHold = nil
			s.mu.Unlock()
			close(hold)
		})
	}
}

// RenewCalls returns the number of renewal requests received.
func (s *Server) RenewCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewCalls
}

// Requests returns the recorded requests for path.
func (s *Server) Requests(path string) []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recorded
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Fail writes the structured error body the client parses.
func Fail(c *gin.Context, status int, code, message string) {
	correlationID := uuid.NewString()
	c.Header("X-Correlation-ID", correlationID)
	c.AbortWithStatusJSON(status, gin.H{
		"error":          gin.H{"code": code, "message": message},
		"correlation_id": correlationID,
	})
}

// Reply is one scripted response.
type Reply struct {
	Status int
	Body   any
}

// Sequence answers with each reply in turn and then repeats the last one.
func Sequence(replies ...Reply) gin.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(c *gin.Context) {
		mu.Lock()
		r := replies[i]
		if i < len(replies)-1 {
			i++
		}
		mu.Unlock()

		if r.Body == nil {
			c.Status(r.Status)
			return
		}
		c.JSON(r.Status, r.Body)
	}
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
		RequestID:     c.GetHeader("X-Request-ID"),
	})
	s.mu.Unlock()
	c.Next()
}

// RequireAuth validates the bearer access token and stores its claims under
// the "claims" key.
func (s *Server) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		Fail(c, http.StatusUnauthorized, "not_authenticated", "Authentication credentials were not provided.")
		return
	}
	claims, err := s.verify(token, TypeAccess)
	if err != nil {
		Fail(c, http.StatusUnauthorized, "token_not_valid", "Given token not valid for any token type")
		return
	}
	c.Set("claims", claims)
	c.Next()
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		Fail(c, http.StatusUnauthorized, "invalid_credentials", "No active account found with the given credentials")
		return
	}
	c.JSON(http.StatusOK, s.IssuePair(req.Username, u.tenant))
}

type renewRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (s *Server) renew(c *gin.Context) {
	s.mu.Lock()
	s.renewCalls++
	hold, fail := s.renewHold, s.renewFail
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			return
		}
	}
	if fail {
		Fail(c, http.StatusUnauthorized, "token_not_valid", "Token is invalid or expired")
		return
	}

	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	claims, err := s.verify(req.Refresh, TypeRefresh)
	s.mu.Lock()
	_, known := s.refreshTokens[req.Refresh]
	if known && !s.noRotation {
		delete(s.refreshTokens, req.Refresh)
	}
	s.mu.Unlock()
	if err != nil || !known {
		Fail(c, http.StatusUnauthorized, "token_not_valid", "Token is invalid or expired")
		return
	}

	if s.noRotation {
		access := s.Mint(TypeAccess, claims.Subject, claims.TenantID, s.now().Add(s.accessTTL))
		c.JSON(http.StatusOK, gin.H{"access": access})
		return
	}
	c.JSON(http.StatusOK, s.IssuePair(claims.Subject, claims.TenantID))
}

func (s *Server) me(c *gin.Context) {
	claims := c.MustGet("claims").(*Claims)
	c.JSON(http.StatusOK, gin.H{"subject": claims.Subject, "tenant": claims.TenantID})
}
