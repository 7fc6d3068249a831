// Package notify shows transient, self-dismissing notices. At most one notice
// is mounted at a time: showing a new one unmounts the previous one first.
package notify

import (
	"sync"
	"time"
)

// DefaultDismissAfter is how long a notice stays mounted.
const DefaultDismissAfter = 4 * time.Second

// Kind distinguishes success from error notices.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notice is one mounted message.
type Notice struct {
	ID      uint64    `json:"id"`
	Message string    `json:"message"`
	Kind    Kind      `json:"kind"`
	ShownAt time.Time `json:"shownAt"`
}

// Host is where notices are displayed.
type Host interface {
	Mount(n Notice)
	Unmount(id uint64)
}

type timer interface {
	Stop() bool
}

// Notifier owns the single mounted notice and its dismissal timer.
type Notifier struct {
	host         Host
	dismissAfter time.Duration

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) timer

	mu      sync.Mutex
	nextID  uint64
	current *Notice
	timer   timer
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithDismissAfter sets the auto-dismiss delay. Non-positive values keep the
// default.
func WithDismissAfter(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.dismissAfter = d
		}
	}
}

// New returns a Notifier mounting on host.
func New(host Host, opts ...Option) *Notifier {
	n := &Notifier{
		host:         host,
		dismissAfter: DefaultDismissAfter,
		now:          time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Show replaces the current notice, if any, with msg and schedules its
// removal.
func (n *Notifier) Show(msg string, kind Kind) Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.releaseLocked()

	n.nextID++
	notice := Notice{ID: n.nextID, Message: msg, Kind: kind, ShownAt: n.now()}
	n.current = &notice
	n.host.Mount(notice)

	id := notice.ID
	n.timer = n.afterFunc(n.dismissAfter, func() { n.dismiss(id) })
	return notice
}

// Current returns the mounted notice.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

// Close unmounts the current notice immediately.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.releaseLocked()
}

// dismiss is the timer callback. A stale timer for a replaced notice is a
// no-op.
func (n *Notifier) dismiss(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil || n.current.ID != id {
		return
	}
	n.host.Unmount(id)
	n.current = nil
	n.timer = nil
}

func (n *Notifier) releaseLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.current != nil {
		n.host.Unmount(n.current.ID)
		n.current = nil
	}
}
