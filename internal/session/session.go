package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/wastenot/internal/model"
)

// Session is one consumer's view of the signed-in user: a page render, an
// API request, or a websocket connection.
//
// Loading is true until the initial token check finishes and is false
// afterwards whatever the outcome. For its lifetime the session follows the
// provider's events for its user, so a sign-out or token refresh elsewhere
// is reflected in User() without another lookup.
type Session struct {
	mu      sync.RWMutex
	user    *model.User
	userID  string
	tokenID string
	loading bool
	err     error
	// settled is set once an event has decided the user, so a slower
	// initial check does not overwrite it.
	settled bool

	ready       chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// Open starts a session for token. The initial check runs in the background;
// wait on Ready() or call Wait for its result.
func (p *Provider) Open(ctx context.Context, token string) *Session {
	s := &Session{loading: true, ready: make(chan struct{})}

	// The token's own claims tell us whose events to follow before the
	// (slower) revocation check and user lookup finish.
	if claims, err := p.tokens.Validate(token); err == nil {
		s.userID = claims.UserID
		s.tokenID = claims.TokenID
	}
	s.unsubscribe = p.Subscribe(s.apply)

	go func() {
		user, err := p.Resolve(ctx, token)
		if err != nil {
			p.logger.Debug("session check failed", slog.String("error", err.Error()))
		}
		s.mu.Lock()
		if !s.settled {
			s.user = user
		}
		s.err, s.loading = err, false
		s.mu.Unlock()
		close(s.ready)
	}()

	return s
}

// User returns the signed-in user, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Loading reports whether the initial check is still in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Ready is closed once the initial check has resolved.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the initial check resolves and returns its outcome.
func (s *Session) Wait(ctx context.Context) (*model.User, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.err
}

// Close stops following events. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

func (s *Session) apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" || ev.UserID != s.userID {
		return
	}
	switch ev.Type {
	case EventSignedIn:
		// Another sign-in of the same account; pick up profile changes.
		if s.user != nil && ev.User != nil {
			s.user = ev.User
		}
	case EventSignedOut:
		if ev.TokenID == s.tokenID {
			s.user, s.settled = nil, true
		}
	case EventTokenRefreshed:
		if ev.PreviousTokenID == s.tokenID {
			s.tokenID = ev.TokenID
			s.user, s.settled = ev.User, true
		}
	}
}
