package jobs

import "sync"

// Registry holds jobs between submission and worker pickup. It has no expiry:
// a job nobody subscribes to stays resident for the process lifetime.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Put stores a job under its id. Overwriting an existing id is not expected
// but not rejected.
func (r *Registry) Put(job *Job) {
	if job == nil || job.ID == "" {
		return
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
}

// TakeIfPresent atomically removes and returns the job for jobID. The second
// return value reports whether a job was present. Concurrent callers racing
// for the same id see exactly one winner, which is what keeps a job from
// being processed twice.
func (r *Registry) TakeIfPresent(jobID string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	delete(r.jobs, jobID)
	return job, true
}

// Len reports the number of pending jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
