// Package dashboard implements the root dashboard view: a periodic fetch of
// aggregate stats, connected platforms, and workspaces, held as immutable
// snapshots for renderers.
//
// Fetch policy: the three resources are requested sequentially. An envelope
// with success=false resets only that resource to its default (empty list or
// zero stats). The first transport failure aborts the remaining requests of
// the cycle, records the error message, and leaves resources not yet
// refreshed at their previous snapshot. Loading is always cleared when a
// cycle returns.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/greg-hellings/omnicognitor/pkg/api"
)

const (
	// DefaultRefreshInterval is the polling period while the view is mounted.
	DefaultRefreshInterval = 30 * time.Second

	// MaxPlatforms bounds the platform grid.
	MaxPlatforms = 8

	// MaxWorkspaces bounds the workspace list.
	MaxWorkspaces = 5

	fallbackErrorMessage = "Failed to fetch data"
)

// Phase is the view's lifecycle state.
type Phase string

const (
	// PhaseLoading indicates a fetch cycle is in progress.
	PhaseLoading Phase = "loading"
	// PhaseLoaded indicates the last cycle completed without a transport failure.
	PhaseLoaded Phase = "loaded"
	// PhaseErrored indicates the last cycle aborted on a transport failure.
	PhaseErrored Phase = "errored"
)

// Fetcher is the subset of the backend client the dashboard needs.
type Fetcher interface {
	Stats(ctx context.Context) (*api.StatsEnvelope, error)
	Platforms(ctx context.Context) (*api.ListEnvelope[api.Platform], error)
	Workspaces(ctx context.Context) (*api.ListEnvelope[api.Workspace], error)
}

// Snapshot is a point-in-time copy of the view state. Callers may keep it;
// later cycles never mutate a snapshot that was already handed out.
type Snapshot struct {
	Phase           Phase           `json:"phase"`
	Loading         bool            `json:"loading"`
	Error           string          `json:"error,omitempty"`
	Stats           api.Stats       `json:"stats"`
	Platforms       []api.Platform  `json:"platforms"`
	Workspaces      []api.Workspace `json:"workspaces"`
	ActiveWorkspace api.ID          `json:"activeWorkspace,omitempty"`
	LastUpdated     time.Time       `json:"lastUpdated"`
	Cycles          int             `json:"cycles"`
}

// VisiblePlatforms returns the platforms shown in the grid (first MaxPlatforms).
func (s Snapshot) VisiblePlatforms() []api.Platform {
	if len(s.Platforms) > MaxPlatforms {
		return s.Platforms[:MaxPlatforms]
	}
	return s.Platforms
}

// VisibleWorkspaces returns the workspaces shown in the list (first MaxWorkspaces).
func (s Snapshot) VisibleWorkspaces() []api.Workspace {
	if len(s.Workspaces) > MaxWorkspaces {
		return s.Workspaces[:MaxWorkspaces]
	}
	return s.Workspaces
}

// Options tunes a View.
type Options struct {
	// RefreshInterval defaults to DefaultRefreshInterval when zero.
	RefreshInterval time.Duration
	// Now is used for LastUpdated timestamps; defaults to time.Now.
	Now func() time.Time
}

// View owns the dashboard state and its polling lifecycle.
type View struct {
	fetcher  Fetcher
	interval time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	state     Snapshot
	listeners map[int]func(Snapshot)
	nextID    int

	// cycleMu serializes fetch cycles so an explicit Refresh never
	// interleaves with a timer-driven one.
	cycleMu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a View. The initial phase is PhaseLoading with empty data,
// matching a freshly mounted view that has not completed a cycle yet.
func New(fetcher Fetcher, opts Options) *View {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &View{
		fetcher:  fetcher,
		interval: interval,
		now:      now,
		state: Snapshot{
			Phase:      PhaseLoading,
			Loading:    true,
			Platforms:  []api.Platform{},
			Workspaces: []api.Workspace{},
		},
		listeners: map[int]func(Snapshot){},
	}
}

// RefreshInterval returns the configured polling period.
func (v *View) RefreshInterval() time.Duration {
	return v.interval
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.copyStateLocked()
}

func (v *View) copyStateLocked() Snapshot {
	s := v.state
	s.Platforms = append([]api.Platform(nil), v.state.Platforms...)
	s.Workspaces = append([]api.Workspace(nil), v.state.Workspaces...)
	if s.Platforms == nil {
		s.Platforms = []api.Platform{}
	}
	if s.Workspaces == nil {
		s.Workspaces = []api.Workspace{}
	}
	return s
}

// OnChange registers fn to receive a snapshot after every state transition.
// The returned function unregisters it.
func (v *View) OnChange(fn func(Snapshot)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

// update applies fn to the state under lock and notifies listeners.
func (v *View) update(fn func(s *Snapshot)) {
	v.mu.Lock()
	fn(&v.state)
	snap := v.copyStateLocked()
	listeners := make([]func(Snapshot), 0, len(v.listeners))
	for _, l := range v.listeners {
		listeners = append(listeners, l)
	}
	v.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// SelectWorkspace marks id as the active workspace. It has no network effect.
// An empty id clears the selection.
func (v *View) SelectWorkspace(id api.ID) {
	v.update(func(s *Snapshot) {
		s.ActiveWorkspace = id
	})
	slog.Debug("Workspace selected", "id", string(id))
}

// Refresh runs one fetch cycle and returns the first transport failure, if
// any. The failure is also recorded in the view state; callers that only
// render the state may ignore the return value.
func (v *View) Refresh(ctx context.Context) error {
	v.cycleMu.Lock()
	defer v.cycleMu.Unlock()

	var prior Phase
	v.update(func(s *Snapshot) {
		prior = s.Phase
		s.Phase = PhaseLoading
		s.Loading = true
		s.Error = ""
	})

	start := v.now()
	err := v.fetchAll(ctx)

	v.update(func(s *Snapshot) {
		s.Loading = false
		s.Cycles++
		switch {
		case err != nil && errors.Is(ctx.Err(), context.Canceled):
			// Torn down mid-request: keep whatever the previous cycle showed.
			if prior == PhaseLoading {
				prior = PhaseLoaded
			}
			s.Phase = prior
		case err != nil:
			s.Phase = PhaseErrored
			s.Error = errorMessage(err)
		default:
			s.Phase = PhaseLoaded
			s.LastUpdated = v.now()
		}
	})

	if err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			slog.Warn("Dashboard refresh failed", "error", err, "duration", v.now().Sub(start).String())
		}
		return err
	}

	snap := v.Snapshot()
	slog.Info("Dashboard refresh complete",
		"platforms", len(snap.Platforms),
		"workspaces", len(snap.Workspaces),
		"duration", v.now().Sub(start).String())
	return nil
}

// fetchAll issues the three requests in order, applying each result as it
// arrives and stopping at the first transport failure.
func (v *View) fetchAll(ctx context.Context) error {
	statsEnv, err := v.fetcher.Stats(ctx)
	if err != nil {
		return err
	}
	v.update(func(s *Snapshot) {
		s.Stats = api.Stats{}
		if statsEnv.Success && statsEnv.Stats != nil {
			s.Stats = *statsEnv.Stats
		}
	})

	platformsEnv, err := v.fetcher.Platforms(ctx)
	if err != nil {
		return err
	}
	v.update(func(s *Snapshot) {
		s.Platforms = []api.Platform{}
		if platformsEnv.Success && platformsEnv.Data != nil {
			s.Platforms = append([]api.Platform(nil), platformsEnv.Data...)
		}
	})

	workspacesEnv, err := v.fetcher.Workspaces(ctx)
	if err != nil {
		return err
	}
	v.update(func(s *Snapshot) {
		s.Workspaces = []api.Workspace{}
		if workspacesEnv.Success && workspacesEnv.Data != nil {
			s.Workspaces = append([]api.Workspace(nil), workspacesEnv.Data...)
		}
	})

	return nil
}

func errorMessage(err error) string {
	if errors.Is(err, api.ErrUnauthorized) {
		return api.ErrUnauthorized.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackErrorMessage
}

// Mount starts the polling lifecycle: one cycle immediately, then one every
// RefreshInterval until Unmount is called or ctx is canceled. Mounting an
// already mounted view is a no-op.
func (v *View) Mount(ctx context.Context) {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	if v.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done

	go func() {
		defer close(done)

		// A timer re-armed from each cycle's start keeps consecutive cycles at
		// least one interval apart even when a cycle runs long.
		start := time.Now()
		_ = v.Refresh(runCtx)
		timer := time.NewTimer(nextWait(start, v.interval))
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				if runCtx.Err() != nil {
					return
				}
				slog.Debug("Dashboard auto-refresh triggered")
				start = time.Now()
				_ = v.Refresh(runCtx)
				timer.Reset(nextWait(start, v.interval))
			case <-runCtx.Done():
				slog.Debug("Dashboard auto-refresh stopped")
				return
			}
		}
	}()
	slog.Info("Dashboard mounted", "interval", v.interval.String())
}

func nextWait(start time.Time, interval time.Duration) time.Duration {
	wait := interval - time.Since(start)
	if wait < 0 {
		return 0
	}
	return wait
}

// Unmount cancels the refresh timer and any in-flight request, then waits for
// the polling goroutine to exit. No cycle starts after Unmount returns.
// Unmounting an unmounted view is a no-op.
func (v *View) Unmount() {
	v.lifeMu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("Dashboard unmounted")
}

// Mounted reports whether the polling lifecycle is active.
func (v *View) Mounted() bool {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	return v.cancel != nil
}
