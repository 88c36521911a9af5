package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// State is a consistent snapshot of the session.
type State struct {
	AccessToken       string
	RefreshToken      string
	Identity          *Identity
	IsLoadingIdentity bool
}

// IsAuthenticated reports whether an access token is held.
func (s State) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// accountsAPI is the set of endpoints the session drives.
type accountsAPI interface {
	obtainTokenPair(ctx context.Context, username, password string) (access, refresh string, err error)
	refreshAccessToken(ctx context.Context, refresh string) (string, error)
	fetchIdentity(ctx context.Context) (*Identity, error)
}

// Session is the in-memory authentication state: the token pair, the cached identity
// and the identity-loading flag. It is the only owner of these fields; the credential
// store is a mirror used to survive restarts.
//
// Session is safe for concurrent use. Observers registered with Subscribe are notified
// after every mutation.
type Session struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	identity     *Identity
	loading      int
	// generation changes on every login and logout; identity results from an
	// earlier generation are discarded.
	generation uint64

	store  CredentialStore
	api    accountsAPI
	logger *slog.Logger

	identityFlight singleflight.Group

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

var _ oauth2.TokenSource = (*Session)(nil)

func newSession(store CredentialStore, api accountsAPI, logger *slog.Logger) *Session {
	s := &Session{
		store:  store,
		api:    api,
		logger: logger,
		subs:   make(map[int]func(State)),
	}

	creds, err := LoadCredentials(store)
	if err != nil {
		logger.Warn("failed to read stored credentials; starting signed out", "error", err)
		return s
	}
	s.accessToken = creds.AccessToken
	s.refreshToken = creds.RefreshToken
	return s
}

// Login exchanges username and password for a token pair, persists it and loads the
// identity. An *AuthenticationError from the login endpoint is returned unmodified.
func (s *Session) Login(ctx context.Context, username, password string) error {
	access, refresh, err := s.api.obtainTokenPair(ctx, username, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.identity = nil
	s.generation++
	s.mu.Unlock()

	s.persist(AccessTokenKey, access)
	s.persist(RefreshTokenKey, refresh)
	s.notify()

	if _, err := s.LoadIdentity(ctx); err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	return nil
}

// FetchIdentity calls the identity endpoint and caches the result. The loading flag is
// raised for the duration of the call. Concurrent calls are not merged; use LoadIdentity
// for that.
func (s *Session) FetchIdentity(ctx context.Context) (*Identity, error) {
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()
	return s.fetchIdentity(ctx, generation)
}

func (s *Session) fetchIdentity(ctx context.Context, generation uint64) (*Identity, error) {
	s.mu.Lock()
	if s.accessToken == "" || s.generation != generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.loading++
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
		s.notify()
	}()

	identity, err := s.api.fetchIdentity(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A logout or a new login while the request was in flight wins.
	if s.accessToken == "" || s.generation != generation {
		return nil, ErrNotAuthenticated
	}
	s.identity = identity
	return copyIdentity(identity), nil
}

// LoadIdentity returns the cached identity, fetching it when absent. Concurrent callers
// share a single in-flight fetch.
func (s *Session) LoadIdentity(ctx context.Context) (*Identity, error) {
	if identity := s.Identity(); identity != nil {
		return identity, nil
	}

	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()

	// Keyed by generation so a new login never joins a fetch from the previous one.
	key := "identity:" + strconv.FormatUint(generation, 10)
	ch := s.identityFlight.DoChan(key, func() (any, error) {
		// A flight that finished between the cache check and DoChan already stored it.
		if identity := s.Identity(); identity != nil {
			return identity, nil
		}
		return s.fetchIdentity(context.WithoutCancel(ctx), generation)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyIdentity(res.Val.(*Identity)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RefreshAccessToken renews the access token. It never fails loudly: it reports false
// when there is no refresh token or the refresh endpoint rejects it, and leaves the
// session untouched in that case.
func (s *Session) RefreshAccessToken(ctx context.Context) bool {
	_, err := s.Refresh(ctx)
	return err == nil
}

// Refresh renews the access token and returns it.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	refresh := s.RefreshToken()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	access, err := s.api.refreshAccessToken(ctx, refresh)
	if err != nil {
		s.logger.Debug("refresh rejected", "error", err)
		return "", err
	}
	if access == "" {
		return "", errors.New("refresh response carried no access token")
	}

	s.mu.Lock()
	if s.refreshToken != refresh {
		// Logged out (or logged in again) meanwhile.
		s.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	s.accessToken = access
	s.mu.Unlock()

	s.persist(AccessTokenKey, access)
	s.notify()
	return access, nil
}

// Logout clears tokens and identity from memory and from the credential store.
// Calling it on a signed-out session is a no-op apart from re-clearing the store.
func (s *Session) Logout() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.identity = nil
	s.generation++
	s.mu.Unlock()

	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := s.store.Remove(key); err != nil {
			s.logger.Warn("failed to remove stored credential", "key", key, "error", err)
		}
	}
	s.notify()
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Identity returns a copy of the cached identity, or nil.
func (s *Session) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIdentity(s.identity)
}

func (s *Session) IsLoadingIdentity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// Role returns the cached identity's role, or "" when unknown.
func (s *Session) Role() Role {
	if identity := s.Identity(); identity != nil {
		return identity.Role
	}
	return ""
}

func (s *Session) IsCoachOrAdmin() bool {
	return s.Role().IsStaff()
}

func (s *Session) IsPlayer() bool {
	return s.Role() == RolePlayer
}

// State returns a snapshot of every field.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		AccessToken:       s.accessToken,
		RefreshToken:      s.refreshToken,
		Identity:          copyIdentity(s.identity),
		IsLoadingIdentity: s.loading > 0,
	}
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	access := s.AccessToken()
	if access == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken(),
	}, nil
}

// Subscribe registers fn to receive a snapshot after every mutation.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Session) notify() {
	s.subsMu.Lock()
	if len(s.subs) == 0 {
		s.subsMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	state := s.State()
	for _, fn := range fns {
		fn(state)
	}
}

func (s *Session) persist(key, value string) {
	if err := s.store.Set(key, value); err != nil {
		s.logger.Warn("failed to persist credential", "key", key, "error", err)
	}
}

func copyIdentity(identity *Identity) *Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	if identity.AthleteID != nil {
		id := *identity.AthleteID
		cp.AthleteID = &id
	}
	return &cp
}
