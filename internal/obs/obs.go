// Package obs wires the runtime's scheduling decisions to the observability
// stack used throughout the zoobzio-pipz connector pack: metricz for
// counters/gauges, tracez for spans, and hookz for lifecycle events a host
// can subscribe to without coupling to the scheduler's internals.
package obs

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

const (
	MetricWorkerLoad    = metricz.Key("vcpurt.worker.load")
	MetricQueueFull     = metricz.Key("vcpurt.worker.queue_full")
	MetricMigrated      = metricz.Key("vcpurt.balancer.migrated_total")
	MetricTasksSpawned  = metricz.Key("vcpurt.tasks.spawned_total")
	MetricTasksComplete = metricz.Key("vcpurt.tasks.completed_total")

	SpanBalancerIteration = tracez.Key("vcpurt.balancer.iteration")
	SpanBatchWake         = tracez.Key("vcpurt.waiter.batch_wake")

	TagSrcVCPU    = tracez.Tag("vcpurt.balancer.src")
	TagDstVCPU    = tracez.Tag("vcpurt.balancer.dst")
	TagMigrated   = tracez.Tag("vcpurt.balancer.migrated")
	TagFDCount    = tracez.Tag("vcpurt.waiter.fd_count")

	EventSpawn     = hookz.Key("vcpurt.task.spawn")
	EventComplete  = hookz.Key("vcpurt.task.complete")
	EventMigration = hookz.Key("vcpurt.balancer.migration")
)

// SpawnEvent is emitted through Recorder.Hooks whenever a new task is
// handed to the scheduler.
type SpawnEvent struct {
	TaskID   uint32
	Priority string
}

// CompleteEvent is emitted when a task's future finishes (Ready or panic).
type CompleteEvent struct {
	TaskID  uint32
	Panic   bool
	Elapsed time.Duration
}

// MigrationEvent is emitted once per load-balancer iteration that actually
// moved tasks.
type MigrationEvent struct {
	Src, Dst int
	Migrated int
	SrcLoad  int
	DstLoad  int
	Elapsed  time.Duration
}

// Recorder bundles the three observability facades behind one handle so
// callers that never configure one pay nothing: the zero value is usable
// (every field is initialized by New, and every method tolerates a nil
// Recorder receiver by doing nothing).
type Recorder struct {
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	spawn   *hookz.Hooks[SpawnEvent]
	done    *hookz.Hooks[CompleteEvent]
	migrate *hookz.Hooks[MigrationEvent]
}

// New constructs a Recorder with live backends. Use nil (the zero value of
// *Recorder) to disable observability entirely.
func New() *Recorder {
	return &Recorder{
		metrics: metricz.New(),
		tracer:  tracez.New(),
		spawn:   hookz.New[SpawnEvent](),
		done:    hookz.New[CompleteEvent](),
		migrate: hookz.New[MigrationEvent](),
	}
}

func (r *Recorder) SetGauge(key metricz.Key, v float64) {
	if r == nil {
		return
	}
	r.metrics.Gauge(key).Set(v)
}

func (r *Recorder) Inc(key metricz.Key) {
	if r == nil {
		return
	}
	r.metrics.Counter(key).Inc()
}

func (r *Recorder) Add(key metricz.Key, v float64) {
	if r == nil {
		return
	}
	r.metrics.Counter(key).Add(v)
}

// StartSpan begins a trace span, returning a no-op finisher if the Recorder
// is nil.
func (r *Recorder) StartSpan(ctx context.Context, key tracez.Key) (context.Context, func(tags ...[2]string)) {
	if r == nil {
		return ctx, func(...[2]string) {}
	}
	ctx, span := r.tracer.StartSpan(ctx, key)
	return ctx, func(tags ...[2]string) {
		for _, t := range tags {
			span.SetTag(tracez.Tag(t[0]), t[1])
		}
		span.Finish()
	}
}

func (r *Recorder) EmitSpawn(ctx context.Context, e SpawnEvent) {
	if r == nil {
		return
	}
	_ = r.spawn.Emit(ctx, EventSpawn, e)
}

func (r *Recorder) EmitComplete(ctx context.Context, e CompleteEvent) {
	if r == nil {
		return
	}
	_ = r.done.Emit(ctx, EventComplete, e)
}

func (r *Recorder) EmitMigration(ctx context.Context, e MigrationEvent) {
	if r == nil {
		return
	}
	_ = r.migrate.Emit(ctx, EventMigration, e)
}

// OnMigration subscribes to every load-balancer migration event.
func (r *Recorder) OnMigration(handler func(context.Context, MigrationEvent) error) error {
	if r == nil {
		return nil
	}
	_, err := r.migrate.Hook(EventMigration, handler)
	return err
}

// Close releases the underlying tracer and hook registries.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.tracer.Close()
	r.spawn.Close()
	r.done.Close()
	r.migrate.Close()
}
