// Package runtime owns the live side of the engine: one queue and one
// worker per configured route, the manager that keeps them in sync with
// the route registry, and outbound HTTP delivery. Each route has its
// own queue, so a slow destination on one route never blocks another.
package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/interlink/engine/internal/engine/transform"
)

// Wire protocols a destination can speak.
const (
	ProtocolFHIR = "FHIR"
	ProtocolHL7  = "HL7"
)

// Job carries one flattened source message through a route's queue,
// paired with a one-shot completion channel the worker resolves after
// the delivery attempt.
type Job struct {
	Values map[string]interface{}
	result chan error
}

// NewJob wraps a flat value map for enqueueing.
func NewJob(values map[string]interface{}) *Job {
	return &Job{Values: values, result: make(chan error, 1)}
}

// resolve reports the delivery outcome. The channel is buffered and the
// worker calls this exactly once per job; extra calls are dropped so a
// bug can never deadlock a producer.
func (j *Job) resolve(err error) {
	select {
	case j.result <- err:
	default:
	}
}

// Done returns the completion channel. It yields nil on a 2xx delivery
// and the delivery error otherwise.
func (j *Job) Done() <-chan error {
	return j.result
}

// RouteInfo is the slice of a persisted route the runtime needs to key
// and label workers.
type RouteInfo struct {
	ID            uuid.UUID
	Name          string
	MsgType       string
	SrcEndpointID uuid.UUID
}

// Snapshot is the in-memory view a worker loads once at startup. Rule
// sets are immutable after route creation, so the snapshot is never
// refreshed while the worker runs.
type Snapshot struct {
	DestURL      string
	DestProtocol string

	// Sending and receiving system names for the HL7 header.
	SrcSystem  string
	DestSystem string

	SrcPathByField     map[uuid.UUID]string
	DestPathByField    map[uuid.UUID]string
	DestResourceByPath map[string]string

	Rules []transform.Rule
}

// SnapshotLoader supplies the manager with route listings and workers
// with their startup snapshots.
type SnapshotLoader interface {
	ListRouteInfos(ctx context.Context) ([]RouteInfo, error)
	LoadSnapshot(ctx context.Context, routeID uuid.UUID) (*Snapshot, error)
}
