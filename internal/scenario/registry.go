package scenario

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunInfo is a point-in-time view of one registered run.
type RunInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

type registryEntry struct {
	orch      *Orchestrator
	startedAt time.Time
}

// Registry tracks live scenario runs by ID so a multi-run host can
// inspect and stop them. All access happens under one mutex, held only
// for the map operation, never across a blocking wait.
type Registry struct {
	mu   sync.Mutex
	runs map[string]registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]registryEntry)}
}

// Register adds a run and returns its ID.
func (r *Registry) Register(orch *Orchestrator) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.runs[id] = registryEntry{orch: orch, startedAt: time.Now().UTC()}
	r.mu.Unlock()
	return id
}

// Get returns the orchestrator for an ID.
func (r *Registry) Get(id string) (*Orchestrator, bool) {
	r.mu.Lock()
	entry, ok := r.runs[id]
	r.mu.Unlock()
	return entry.orch, ok
}

// Stop requests a cooperative stop of one run.
func (r *Registry) Stop(id string) bool {
	orch, ok := r.Get(id)
	if !ok {
		return false
	}
	orch.Stop()
	return true
}

// Remove drops a run from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.runs, id)
	r.mu.Unlock()
}

// List snapshots every registered run.
func (r *Registry) List() []RunInfo {
	r.mu.Lock()
	infos := make([]RunInfo, 0, len(r.runs))
	for id, entry := range r.runs {
		infos = append(infos, RunInfo{
			ID:        id,
			Name:      entry.orch.Name(),
			State:     entry.orch.State().String(),
			StartedAt: entry.startedAt,
		})
	}
	r.mu.Unlock()
	return infos
}
