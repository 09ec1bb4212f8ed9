// Package exec holds the executor boundary: the domain-specific workers the
// engine dispatches jobs to. Executors are opaque to the engine; it only
// cares whether a run succeeded, and if not, what kind of failure occurred.
package exec

import (
	"context"
	"fmt"

	"github.com/nmehta6/jobforge/pkg/models"
)

// Result carries the row counts an executor reports for a successful run.
type Result struct {
	RecordsFetched  int `json:"records_fetched"`
	RecordsInserted int `json:"records_inserted"`
	RecordsUpdated  int `json:"records_updated"`
	RecordsFailed   int `json:"records_failed"`
}

// Executor runs one job to completion. Implementations must honor ctx
// cancellation and return an error carrying enough type information for the
// retry policy to classify it (see StatusError).
type Executor interface {
	Name() string
	Execute(ctx context.Context, job *models.Job) (*Result, error)
}

// StatusError is an executor failure tied to an HTTP status from the external
// system. The retry policy uses StatusCode to separate transient upstream
// trouble (429, 5xx) from terminal rejections.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("executor: upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("executor: upstream returned status %d: %s", e.Code, e.Message)
}

func (e *StatusError) StatusCode() int { return e.Code }

// Registry maps job types to executors. Built once at startup; read-only
// afterwards, so no locking.
type Registry struct {
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register binds an executor to a job type, replacing any previous binding.
func (r *Registry) Register(jobType string, ex Executor) {
	r.executors[jobType] = ex
}

// Resolve returns the executor for a job type. A missing executor is a
// configuration error and terminal for the job.
func (r *Registry) Resolve(jobType string) (Executor, error) {
	ex, ok := r.executors[jobType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for job type %q", jobType)
	}
	return ex, nil
}
