package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/services"
)

// Registry is the in-memory job table. All reads return clones; all writes
// go through Update so status monotonicity is enforced in one place.
type Registry struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[int]chan *Job
	nextSubID   int
}

func New() *Registry {
	return &Registry{
		jobs:        make(map[string]*Job),
		subscribers: make(map[int]chan *Job),
	}
}

// Create registers a new queued job for the given upload and returns a
// snapshot of it.
func (r *Registry) Create(sourceFilename string) *Job {
	now := time.Now().UTC()
	job := &Job{
		ID:              uuid.NewString(),
		SourceFilename:  sourceFilename,
		DisplayTitle:    TitleFromFilename(sourceFilename),
		Status:          StatusQueued,
		ProgressMessage: "queued",
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.notify(job.Clone())
	return job.Clone()
}

// Get returns a snapshot of the job or services.ErrNotFound.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	return job.Clone(), nil
}

// Update applies mutate to the job under the registry lock. Status changes
// produced by mutate must be legal forward transitions; completion requires
// at least one recorded page.
func (r *Registry) Update(id string, mutate func(*Job)) (*Job, error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}

	// Mutations run on a draft so an invalid transition leaves the stored
	// job untouched.
	draft := job.Clone()
	mutate(draft)
	if !CanTransition(job.Status, draft.Status) {
		from, to := job.Status, draft.Status
		r.mu.Unlock()
		return nil, fmt.Errorf("invalid status transition %s -> %s for job %s", from, to, id)
	}
	if draft.Status == StatusCompleted && len(draft.Pages) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("job %s cannot complete without pages", id)
	}
	draft.UpdatedAt = time.Now().UTC()
	if draft.Status == StatusCompleted && draft.CompletedAt == nil {
		completed := draft.UpdatedAt
		draft.CompletedAt = &completed
	}
	*job = *draft
	snapshot := draft.Clone()
	r.mu.Unlock()

	r.notify(snapshot)
	return snapshot, nil
}

// List returns snapshots of every job, newest first.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Active returns snapshots of jobs that have not reached a terminal status.
func (r *Registry) Active() []*Job {
	var active []*Job
	for _, job := range r.List() {
		if !job.Status.Terminal() {
			active = append(active, job)
		}
	}
	return active
}

// Remove deletes the job from the table. The caller owns artifact cleanup.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	_, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	return nil
}

// Subscribe registers a channel that receives a snapshot after every job
// change. The returned cancel func must be called to release the channel.
// Slow subscribers drop updates rather than block the registry.
func (r *Registry) Subscribe() (<-chan *Job, func()) {
	ch := make(chan *Job, 32)

	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if existing, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(existing)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Registry) notify(snapshot *Job) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
