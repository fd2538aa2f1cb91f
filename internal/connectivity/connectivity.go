// Package connectivity tracks whether the terminal can reach the outside
// world. The classification only decides whether a committed receipt syncs
// immediately or is queued; it never blocks a commit.
package connectivity

import (
	"context"
	"log"
	"net"
	"sync"
	"time"
)

// Classifier answers the single question the committer asks at commit time.
type Classifier interface {
	Online() bool
}

// Static is a fixed classification, used for tests and forced-offline mode.
type Static bool

func (s Static) Online() bool { return bool(s) }

// Monitor holds the current classification and notifies subscribers on
// transitions. Probing is optional; SetOnline can also be driven externally
// (e.g. by the browser's online/offline events relayed over the API).
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	observers []func(online bool)
}

func NewMonitor(initial bool) *Monitor {
	return &Monitor{online: initial}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a classification change. Observers fire only on actual
// transitions, outside the lock.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	observers := make([]func(bool), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(online)
	}
}

// Subscribe registers a transition callback. Not safe to call once Run has
// started.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Probe reports whether the network currently looks reachable.
type Probe func(ctx context.Context) bool

// DialProbe considers the terminal online when a TCP connection to addr
// succeeds within the timeout.
func DialProbe(addr string, timeout time.Duration) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Run re-probes on the given interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, probe Probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := probe(ctx)
			if online != m.Online() {
				log.Printf("[connectivity] terminal is now %s", statusWord(online))
			}
			m.SetOnline(online)
		}
	}
}

func statusWord(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
