// Package mode tracks whether the engine is backed by a live backend or by
// the built-in demonstration fixtures.
package mode

import (
	"strings"
	"sync"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/metrics"
)

// Mode is the session-scoped data-source flag.
type Mode string

const (
	Uninitialized Mode = "uninitialized"
	Live          Mode = "live"
	Mock          Mode = "mock"
)

// Placeholder credential values that count as absent. Frontend build
// pipelines are fond of serializing missing env vars as the literal strings.
var placeholders = map[string]bool{
	"":          true,
	"undefined": true,
	"null":      true,
}

// CredentialsPresent reports whether both connection parameters carry real
// values.
func CredentialsPresent(endpoint, credential string) bool {
	return !placeholders[strings.TrimSpace(endpoint)] &&
		!placeholders[strings.TrimSpace(credential)]
}

// Tracker holds the current mode. Transitions are one-way: Init resolves
// Uninitialized to Live or Mock exactly once, and Demote moves Live to Mock
// terminally. There is no path back to Live within a session, which keeps a
// demo from flapping between fixture and real data.
type Tracker struct {
	mu   sync.Mutex
	mode Mode
	log  logger.Logger
}

// NewTracker creates an uninitialized tracker.
func NewTracker(log logger.Logger) *Tracker {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Tracker{mode: Uninitialized, log: log}
}

// Init resolves the initial mode from the connection parameters. Calling it
// again returns the already-resolved mode unchanged.
func (t *Tracker) Init(endpoint, credential string) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode != Uninitialized {
		return t.mode
	}

	if CredentialsPresent(endpoint, credential) {
		t.mode = Live
	} else {
		t.mode = Mock
		t.log.Warn("Backend not configured, using demonstration data")
	}
	t.set(t.mode)
	return t.mode
}

// Demote moves the tracker to Mock after a failed fetch. Safe to call in any
// state; already-Mock trackers stay Mock.
func (t *Tracker) Demote(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode == Mock {
		return
	}
	t.mode = Mock
	t.set(Mock)
	t.log.Error("Backend fetch failed, falling back to demonstration data",
		logger.Error(err))
}

// Current returns the mode.
func (t *Tracker) Current() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// IsLive reports whether the tracker resolved to a reachable backend.
func (t *Tracker) IsLive() bool {
	return t.Current() == Live
}

func (t *Tracker) set(m Mode) {
	for _, known := range []Mode{Live, Mock} {
		v := 0.0
		if known == m {
			v = 1.0
		}
		metrics.SyncMode.WithLabelValues(string(known)).Set(v)
	}
}
