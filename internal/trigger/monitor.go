package trigger

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"
)

// ConnState represents the observed network state.
type ConnState int

const (
	// Offline indicates the backend is not reachable.
	Offline ConnState = iota
	// Online indicates the backend answered a health probe.
	Online
)

// String returns a human-readable representation of the state.
func (s ConnState) String() string {
	switch s {
	case Offline:
		return "offline"
	case Online:
		return "online"
	default:
		return "unknown"
	}
}

// MonitorConfig configures the connectivity monitor.
type MonitorConfig struct {
	// HealthURL is the backend endpoint probed to decide reachability.
	HealthURL string

	// PollInterval is how often to probe (default: 15s).
	PollInterval time.Duration

	// ProbeTimeout bounds a single probe (default: 5s).
	ProbeTimeout time.Duration

	// Logger for monitor activity.
	Logger *log.Logger
}

// Monitor polls the backend health endpoint and reports state transitions.
//
// Only transitions are delivered, not every probe result, so a consumer that
// kicks the sync runner on Online sees one trigger per reconnect.
type Monitor struct {
	config      MonitorConfig
	client      *http.Client
	transitions chan ConnState
}

// NewMonitor creates a connectivity monitor.
// The monitor must be started with Run() before it emits transitions.
func NewMonitor(config MonitorConfig) *Monitor {
	if config.PollInterval == 0 {
		config.PollInterval = 15 * time.Second
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}

	return &Monitor{
		config:      config,
		client:      &http.Client{Timeout: config.ProbeTimeout},
		transitions: make(chan ConnState, 4),
	}
}

// Transitions returns the channel on which state changes are delivered.
func (m *Monitor) Transitions() <-chan ConnState {
	return m.transitions
}

// Run polls the health endpoint until ctx is cancelled.
//
// The first probe establishes the initial state without emitting a
// transition; every subsequent change of state is delivered on Transitions().
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	last := m.probe(ctx)
	m.config.Logger.Printf("Initial state: %s", last)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			state := m.probe(ctx)
			if state == last {
				continue
			}

			m.config.Logger.Printf("Connectivity changed: %s -> %s", last, state)
			last = state

			select {
			case m.transitions <- state:
			default:
				m.config.Logger.Println("Warning: transition channel full, dropping event")
			}
		}
	}
}

// probe performs a single health check.
func (m *Monitor) probe(ctx context.Context) ConnState {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.config.HealthURL, nil)
	if err != nil {
		return Offline
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return Offline
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Offline
	}
	return Online
}
