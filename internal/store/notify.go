// Package store holds the per-user data stores behind every page and API
// call: pantry items, donations and sales, profile and stats.
//
// A store is created for one request and one signed-in user. It keeps an
// in-memory snapshot of what it last fetched or wrote, and it reports
// user-facing outcomes ("Item added to pantry", "Failed to load ...")
// through a Notifier that the handler turns into a flash message or a JSON
// field.
//
// FAILURE RULES:
//   - Persistence and validation failures: notify, return the error, leave
//     the snapshot untouched. Memory changes only after the write succeeds.
//   - Precondition failures (no user, nothing loaded yet): return
//     apperror.ErrPrecondition without notifying. These are ordering bugs in
//     the caller, not something the user can act on.
package store

import (
	"sync"
	"time"

	"github.com/sakif/wastenot/internal/model"
)

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one transient, user-visible message.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives user-facing messages from the stores.
type Notifier interface {
	Notify(level Level, message string)
}

// Notices collects messages for one request. The zero value is ready to use.
type Notices struct {
	mu   sync.Mutex
	list []Notice
}

// Notify implements Notifier.
func (n *Notices) Notify(level Level, message string) {
	n.mu.Lock()
	n.list = append(n.list, Notice{Level: level, Message: message})
	n.mu.Unlock()
}

// All returns the collected notices in order.
func (n *Notices) All() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.list...)
}

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Level, string) {}

// today is the calendar date freshness is computed against, in the server's
// local zone.
func today(now func() time.Time) model.Date {
	return model.DateOf(now())
}
