// Package sdktest provides an in-process fake of the Mamutes accounts API for tests.
//
// The server issues HS256 JWT pairs the way SimpleJWT does (login returns access and
// refresh, refresh returns a new access token), guards every other endpoint with the
// bearer token, and exposes counters and gates so tests can drive token expiry and
// concurrent refresh scenarios deterministically.
package sdktest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Account is a user known to the fake server.
type Account struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	AthleteID *int64 `json:"athlete_id,omitempty"`

	password string
}

// Request is a recorded call to a protected endpoint.
type Request struct {
	Method        string
	Path          string
	RequestID     string
	Authorization string
	Status        int
}

// Server is the fake API. Its URL is the server root; the API lives under /api.
type Server struct {
	*httptest.Server

	secret []byte

	mu            sync.Mutex
	accounts      map[string]*Account
	access        map[string]string // access token -> username
	refresh       map[string]string // refresh token -> username
	nextID        int64
	loginCalls    int
	refreshCalls  int
	identityCalls int
	unauthorized  int
	requests      []Request
	always401     map[string]bool
	refreshGate   <-chan struct{}
	identityGate  <-chan struct{}
	failIdentity  bool
	accessTTL     time.Duration
}

// NewServer starts a fake server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		secret:    []byte("sdktest-secret"),
		accounts:  make(map[string]*Account),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		always401: make(map[string]bool),
		nextID:    1,
		accessTTL: 5 * time.Minute,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts/login/", s.handleLogin)
		r.Post("/accounts/refresh/", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireBearer)
			r.Get("/accounts/me/", s.handleMe)
			r.Post("/accounts/change-password/", s.handleChangePassword)
			r.Get("/accounts/users/", s.handleListUsers)
			r.Post("/accounts/users/", s.handleCreateUser)
			r.HandleFunc("/probe/{name}", s.handleProbe)
		})
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddAccount registers an account that can log in with password.
func (s *Server) AddAccount(username, password, role string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := &Account{
		ID:       s.nextID,
		Username: username,
		Email:    username + "@mamutes.test",
		Role:     role,
		password: password,
	}
	s.nextID++
	s.accounts[username] = acct
	return acct
}

// IssueTokens mints a valid pair for username without going through login.
func (s *Server) IssueTokens(username string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueAccess(username), s.issueRefresh(username)
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// SetRefreshGate makes the refresh endpoint block until gate is closed.
func (s *Server) SetRefreshGate(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshGate = gate
}

// SetIdentityGate makes the identity endpoint block until gate is closed.
func (s *Server) SetIdentityGate(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identityGate = gate
}

// FailIdentity makes the identity endpoint answer 500.
func (s *Server) FailIdentity(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIdentity = fail
}

// AlwaysUnauthorized makes /api/probe/{name} answer 401 regardless of the token.
func (s *Server) AlwaysUnauthorized(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.always401[name] = true
}

func (s *Server) LoginCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) IdentityCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identityCalls
}

// Unauthorized counts 401s served by protected endpoints.
func (s *Server) Unauthorized() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unauthorized
}

// Requests returns the calls made to protected endpoints, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// IsAccessTokenValid reports whether token would be accepted right now.
func (s *Server) IsAccessTokenValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.access[token]
	return ok
}

func (s *Server) issueAccess(username string) string {
	token := s.sign(username, "access", s.accessTTL)
	s.access[token] = username
	return token
}

func (s *Server) issueRefresh(username string) string {
	token := s.sign(username, "refresh", 24*time.Hour)
	s.refresh[token] = username
	return token
}

func (s *Server) sign(username, tokenType string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	if acct, ok := s.accounts[username]; ok {
		claims["user_id"] = acct.ID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

type ctxAccount struct{}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authz, "Bearer ")

		s.mu.Lock()
		username, ok := s.access[token]
		if ok && strings.HasPrefix(r.URL.Path, "/api/probe/") {
			ok = !s.always401[strings.TrimPrefix(r.URL.Path, "/api/probe/")]
		}
		rec := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RequestID:     r.Header.Get("X-Request-ID"),
			Authorization: authz,
			Status:        http.StatusOK,
		}
		if !ok {
			rec.Status = http.StatusUnauthorized
			s.unauthorized++
		}
		s.requests = append(s.requests, rec)
		acct := s.accounts[username]
		s.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++

	acct, ok := s.accounts[body.Username]
	if !ok || acct.password != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access":  s.issueAccess(acct.Username),
		"refresh": s.issueRefresh(acct.Username),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.refreshCalls++
	gate := s.refreshGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.refresh[body.Refresh]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": s.issueAccess(username)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.identityCalls++
	gate := s.identityGate
	fail := s.failIdentity
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "identity unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, accountFrom(r.Context()))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
		Confirm string `json:"confirm_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	if body.New != body.Confirm {
		writeJSON(w, http.StatusBadRequest, map[string]string{"confirm_password": "Passwords do not match."})
		return
	}

	acct := accountFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.password != body.Current {
		writeJSON(w, http.StatusBadRequest, map[string]string{"current_password": "Current password is incorrect."})
		return
	}
	acct.password = body.New
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated."})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	if acct.Role != "COACH" && acct.Role != "ADMIN" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
		return
	}

	search := strings.ToLower(r.URL.Query().Get("search"))
	s.mu.Lock()
	users := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if search != "" && !strings.Contains(strings.ToLower(a.Username), search) {
			continue
		}
		users = append(users, *a)
	}
	s.mu.Unlock()

	sortAccounts(users)
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	if acct.Role != "COACH" && acct.Role != "ADMIN" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
		return
	}

	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Role      string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	if body.Role == "" {
		body.Role = "PLAYER"
	}

	created := s.AddAccount(body.Username, body.Password, body.Role)
	s.mu.Lock()
	created.Email = body.Email
	created.FirstName = body.FirstName
	created.LastName = body.LastName
	out := *created
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

// handleProbe echoes the request so tests can assert what reached the server.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var body any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       chi.URLParam(r, "name"),
		"method":     r.Method,
		"request_id": r.Header.Get("X-Request-ID"),
		"body":       body,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sortAccounts(accts []Account) {
	sort.Slice(accts, func(i, j int) bool { return accts[i].Username < accts[j].Username })
}

func withAccount(ctx context.Context, acct *Account) context.Context {
	return context.WithValue(ctx, ctxAccount{}, acct)
}

func accountFrom(ctx context.Context) *Account {
	acct, _ := ctx.Value(ctxAccount{}).(*Account)
	if acct == nil {
		return &Account{}
	}
	return acct
}
