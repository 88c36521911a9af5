package sdk

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Auth endpoints, relative to the API root.
const (
	LoginPath          = "accounts/login/"
	RefreshPath        = "accounts/refresh/"
	IdentityPath       = "accounts/me/"
	ChangePasswordPath = "accounts/change-password/"
	UsersPath          = "accounts/users/"
)

// tokenSession is the slice of the session the transport depends on.
type tokenSession interface {
	AccessToken() string
	RefreshToken() string
	Refresh(ctx context.Context) (string, error)
	Logout()
}

// Transport is an http.RoundTripper with two stages:
//
//   - outbound: attach the session's access token as a bearer credential;
//   - inbound: on 401, renew the access token once (shared by every request failing
//     meanwhile) and replay the request with the new token.
//
// Each logical request is replayed at most once. 401s from the login and refresh
// endpoints are never intercepted.
type Transport struct {
	// Base performs the actual round trips. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	session         tokenSession
	refresh         refreshCoordinator
	onLoginRequired func()
	onRetry         func(*http.Request)
	logger          *slog.Logger
}

type retriedKey struct{}

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sent := req.Clone(req.Context())
	token := t.session.AccessToken()
	if token != "" {
		setBearer(sent, token)
	}

	resp, err := t.base().RoundTrip(sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	return t.recover(req, token, resp)
}

func (t *Transport) recover(req *http.Request, sentToken string, resp *http.Response) (*http.Response, error) {
	ctx := req.Context()
	logger := t.log().With("method", req.Method, "path", req.URL.Path, "request_id", req.Header.Get(RequestIDHeader))

	if !replayable(req) || isAuthEndpoint(req.URL.Path) || isRetried(ctx) {
		return resp, nil
	}

	if t.session.RefreshToken() == "" {
		logger.Warn("unauthorized without refresh token; ending session")
		t.expire()
		return resp, nil
	}

	// The access token changed while this request was in flight: another request
	// already renewed it, so replay without a second refresh.
	if current := t.session.AccessToken(); current != "" && current != sentToken {
		logger.Debug("replaying with token renewed by a concurrent request")
		t.notifyRetry(req)
		return t.replay(req, resp, current)
	}

	waiter, leader := t.refresh.begin()
	if !leader {
		logger.Debug("refresh in flight; queued")
		return t.await(req, resp, waiter)
	}

	logger.Debug("access token rejected; refreshing")
	// The refresh is shared with queued requests, so it must not die with this caller.
	token, err := t.session.Refresh(context.WithoutCancel(ctx))
	if err != nil {
		t.refresh.settle("")
		drain(resp)
		logger.Warn("token refresh failed; ending session", "error", err)
		t.expire()
		return nil, &RefreshExpiredError{Cause: err}
	}

	t.notifyRetry(req)
	t.refresh.settle(token)
	return t.replay(req, resp, token)
}

// await blocks until the in-flight refresh settles. On failure the original 401 is
// returned untouched.
func (t *Transport) await(req *http.Request, resp *http.Response, w *refreshWaiter) (*http.Response, error) {
	select {
	case token := <-w.result:
		if token == "" {
			close(w.taken)
			return resp, nil
		}
		t.notifyRetry(req)
		close(w.taken)
		return t.replay(req, resp, token)
	case <-req.Context().Done():
		close(w.taken)
		drain(resp)
		return nil, req.Context().Err()
	}
}

// replay resubmits req with token on the base transport. A 401 here is final.
func (t *Transport) replay(req *http.Request, failed *http.Response, token string) (*http.Response, error) {
	drain(failed)

	retry := req.Clone(withRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	setBearer(retry, token)

	return t.base().RoundTrip(retry)
}

func (t *Transport) notifyRetry(req *http.Request) {
	if t.onRetry != nil {
		t.onRetry(req)
	}
}

func (t *Transport) expire() {
	t.session.Logout()
	if t.onLoginRequired != nil {
		t.onLoginRequired()
	}
}

func setBearer(req *http.Request, token string) {
	tok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	tok.SetAuthHeader(req)
}

func isAuthEndpoint(path string) bool {
	return strings.Contains(path, "/"+LoginPath) || strings.Contains(path, "/"+RefreshPath)
}

// replayable reports whether the request body can be rebuilt for a second attempt.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
