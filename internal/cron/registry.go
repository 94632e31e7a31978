package cron

import "context"

// Job is one scheduled task of the store back office.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. Names are unique; a second
// job with a taken name is ignored.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job and reports whether it was accepted.
func (r *Registry) Register(job Job) bool {
	if job == nil || r.Find(job.Name()) != nil {
		return false
	}
	r.jobs = append(r.jobs, job)
	return true
}

// Find returns the job called name, or nil.
func (r *Registry) Find(name string) Job {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
