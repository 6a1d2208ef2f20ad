package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/engine/message"
	"github.com/interlink/engine/internal/engine/transform"
)

// Manager polls the route listing and keeps one worker running per
// route. Routes created after startup are picked up on the next poll;
// a worker that died (snapshot load failure) is respawned the same way.
type Manager struct {
	loader    SnapshotLoader
	registry  *Registry
	deliverer Deliverer
	logger    zerolog.Logger

	pollInterval  time.Duration
	queueCapacity int
}

// NewManager wires a manager over the given loader, registry, and
// deliverer.
func NewManager(loader SnapshotLoader, registry *Registry, deliverer Deliverer, pollInterval time.Duration, queueCapacity int, logger zerolog.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if queueCapacity <= 0 {
		queueCapacity = 64
	}
	return &Manager{
		loader:        loader,
		registry:      registry,
		deliverer:     deliverer,
		logger:        logger.With().Str("component", "route_manager").Logger(),
		pollInterval:  pollInterval,
		queueCapacity: queueCapacity,
	}
}

// Run polls until ctx is cancelled, then shuts every worker down and
// waits for their queues to drain. The first poll happens immediately
// so routes are live before the first tick.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info().Dur("interval", m.pollInterval).Msg("route manager started")

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("route manager stopping, draining workers")
			m.registry.Shutdown()
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Manager) poll(ctx context.Context) {
	routes, err := m.loader.ListRouteInfos(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("route listing failed, keeping current workers")
		return
	}
	for _, route := range routes {
		if m.registry.Running(route.ID) {
			continue
		}
		m.start(ctx, route)
	}
}

// start registers a queue for the route and launches its worker.
func (m *Manager) start(ctx context.Context, route RouteInfo) {
	workerCtx, cancel := context.WithCancel(ctx)
	active := &activeRoute{
		queue:  make(chan *Job, m.queueCapacity),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.registry.register(route.ID, active)
	m.logger.Info().Str("route", route.Name).Str("route_id", route.ID.String()).Msg("starting route worker")
	go m.runWorker(workerCtx, route, active)
}

// runWorker loads the route snapshot once, then consumes the queue
// until cancelled. Remaining jobs are drained after cancellation so no
// caller is left waiting on a completion that will never come.
func (m *Manager) runWorker(ctx context.Context, route RouteInfo, active *activeRoute) {
	defer close(active.done)

	logger := m.logger.With().Str("route", route.Name).Str("route_id", route.ID.String()).Logger()

	snapshot, err := m.loader.LoadSnapshot(ctx, route.ID)
	if err != nil {
		// Deregistering lets the next poll retry instead of leaving a
		// queue nobody reads.
		logger.Error().Err(err).Msg("route snapshot load failed, worker exiting")
		m.registry.deregister(route.ID, active)
		return
	}

	for {
		select {
		case <-ctx.Done():
			m.drain(ctx, route, snapshot, active.queue, logger)
			return
		case job := <-active.queue:
			m.process(ctx, route, snapshot, job, logger)
		}
	}
}

// drain processes whatever is already queued at shutdown.
func (m *Manager) drain(ctx context.Context, route RouteInfo, snapshot *Snapshot, queue chan *Job, logger zerolog.Logger) {
	for {
		select {
		case job := <-queue:
			m.process(ctx, route, snapshot, job, logger)
		default:
			return
		}
	}
}

// process runs one job through transform, build, and delivery, then
// resolves its completion channel.
func (m *Manager) process(ctx context.Context, route RouteInfo, snapshot *Snapshot, job *Job, logger zerolog.Logger) {
	output := transform.Apply(snapshot.Rules, job.Values, snapshot.SrcPathByField, snapshot.DestPathByField, logger)

	body, err := m.buildMessage(route, snapshot, output)
	if err != nil {
		logger.Error().Err(err).Msg("message build failed")
		job.resolve(err)
		return
	}

	// An accepted job delivers even while its worker is shutting down;
	// tying the request to the worker context would fail every drained
	// job with context.Canceled before it is sent. The client's own
	// timeout bounds the call instead.
	err = m.deliverer.Deliver(context.WithoutCancel(ctx), snapshot.DestURL, snapshot.DestProtocol, body)
	if err != nil {
		logger.Error().Err(err).Str("url", snapshot.DestURL).Msg("delivery failed")
	} else {
		logger.Info().Str("url", snapshot.DestURL).Int("fields", len(output)).Msg("message delivered")
	}
	job.resolve(err)
}

func (m *Manager) buildMessage(route RouteInfo, snapshot *Snapshot, output map[string]interface{}) ([]byte, error) {
	if snapshot.DestProtocol == ProtocolHL7 {
		return []byte(message.BuildHL7Message(output, snapshot.SrcSystem, snapshot.DestSystem, route.MsgType)), nil
	}
	grouped := message.BuildFHIRGrouped(output, snapshot.DestResourceByPath)
	return json.Marshal(grouped)
}
