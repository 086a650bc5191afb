package session

import (
	"log/slog"

	"github.com/sakif/wastenot/internal/model"
)

// EventType names a session change.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event is delivered to every subscriber on a session change.
//
// TokenID is the token the event is about: the new one for signed_in and
// token_refreshed, the revoked one for signed_out. PreviousTokenID is set only
// for token_refreshed.
type Event struct {
	Type            EventType   `json:"type"`
	UserID          string      `json:"userId"`
	User            *model.User `json:"user,omitempty"`
	TokenID         string      `json:"-"`
	PreviousTokenID string      `json:"-"`
}

// Subscribe registers fn for every future event and returns a function that
// removes it. fn runs on the publishing goroutine and must not block.
func (p *Provider) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// publish calls every subscriber outside the lock, so a subscriber may
// unsubscribe from inside its callback.
func (p *Provider) publish(ev Event) {
	p.mu.RLock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	p.logger.Debug("session event", slog.String("type", string(ev.Type)), slog.String("userID", ev.UserID))
	for _, fn := range fns {
		fn(ev)
	}
}
