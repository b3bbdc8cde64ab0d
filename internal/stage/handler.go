package stage

import (
	"context"

	"astropitography/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a workflow stage. A stage that is not
// ready keeps its lane idle until the underlying problem clears.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage as ready to process sessions.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage as unable to run, with a detail string explaining
// what is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
