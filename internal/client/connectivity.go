package client

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Monitor supplies the online/offline signal that gates sync attempts.
type Monitor interface {
	// Online is a point check of current connectivity.
	Online() bool
	// Subscribe registers a callback fired on every transition. The
	// returned function cancels the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}

// ProbeMonitor derives connectivity from periodic HTTP probes of the server
// health endpoint. Any probe failure counts as offline: a doomed sync
// attempt is worse than a delayed one.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu     sync.Mutex
	online bool
	known  bool
	subs   map[int]func(bool)
	nextID int
}

// NewProbeMonitor creates a monitor probing baseURL's health endpoint.
func NewProbeMonitor(baseURL string, interval time.Duration) *ProbeMonitor {
	return &ProbeMonitor{
		url:      baseURL + "/api/health",
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		subs:     make(map[int]func(bool)),
	}
}

// Online performs a synchronous probe and reports the result. Transitions
// observed here notify subscribers just like the background loop.
func (m *ProbeMonitor) Online() bool {
	return m.check(context.Background())
}

// Subscribe registers a transition callback.
func (m *ProbeMonitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Run probes on the configured interval until the context is cancelled.
func (m *ProbeMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *ProbeMonitor) check(ctx context.Context) bool {
	online := m.probe(ctx)

	m.mu.Lock()
	changed := !m.known || online != m.online
	m.online = online
	m.known = true
	var fns []func(bool)
	if changed {
		for _, fn := range m.subs {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
	return online
}

func (m *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
