package restore

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/types"
)

// DefaultRetainWindow is how long a completed operation stays visible in
// the registry before the reaper removes it.
const DefaultRetainWindow = 5 * time.Minute

type expiryEntry struct {
	operationID string
	at          time.Time
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Registry tracks in-flight and recently completed restore operations.
// Completed entries expire after the retain window; a single background
// reaper sweeps the expiry heap.
type Registry struct {
	mu       sync.Mutex
	ops      map[string]*types.OperationState
	expiries expiryHeap
	window   time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its reaper
func NewRegistry(window time.Duration) *Registry {
	if window <= 0 {
		window = DefaultRetainWindow
	}
	r := &Registry{
		ops:    make(map[string]*types.OperationState),
		window: window,
		stopCh: make(chan struct{}),
	}
	go r.reap()
	return r
}

// Put registers or replaces an operation
func (r *Registry) Put(state *types.OperationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[state.OperationID] = state
}

// Get returns the tracked operation, nil when unknown or already swept
func (r *Registry) Get(operationID string) *types.OperationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[operationID]
}

// Complete marks an operation finished and schedules its expiry
func (r *Registry) Complete(operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.ops[operationID]
	if !ok {
		return
	}
	state.Completed = true
	heap.Push(&r.expiries, expiryEntry{operationID: operationID, at: time.Now().Add(r.window)})
}

// Active returns the ids of operations not yet completed
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, state := range r.ops {
		if !state.Completed {
			out = append(out, id)
		}
	}
	return out
}

// Stop terminates the reaper
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) reap() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for r.expiries.Len() > 0 && !r.expiries[0].at.After(now) {
		entry := heap.Pop(&r.expiries).(expiryEntry)
		delete(r.ops, entry.operationID)
		removed++
	}
	if removed > 0 {
		logger := log.WithComponent("restore-registry")
		logger.Debug().
			Int("removed", removed).
			Msg("Swept expired operations")
	}
}
