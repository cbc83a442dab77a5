// Package vcpurt is a vCPU-based asynchronous task runtime: a fixed pool of
// goroutines (one per "vCPU"), a priority scheduler with per-vCPU work
// queues and a shared overflow injector, a periodic load balancer, and a
// Waiter/Waker suspension primitive for building blocking IO and
// synchronization primitives on top. Grounded on
// original_source/.../async-rt/src/task/mod.rs for the facade's lifecycle
// (spawn/block_on/init_runner_threads) and the teacher's eventloop/options.go
// for its functional-options configuration shape.
package vcpurt

import (
	"context"
	"sync"

	"github.com/vcpurt/vcpurt/internal/obs"
	"github.com/vcpurt/vcpurt/internal/rtlog"
	"github.com/vcpurt/vcpurt/loadbalancer"
	"github.com/vcpurt/vcpurt/park"
	"github.com/vcpurt/vcpurt/priority"
	"github.com/vcpurt/vcpurt/scheduler"
	"github.com/vcpurt/vcpurt/task"
)

// Runtime is a constructed, optionally-running instance of the task
// scheduler: its vCPU count and load-balancer behavior are fixed for its
// lifetime by the Options passed to New.
type Runtime struct {
	cfg   *config
	sched *scheduler.Scheduler
	parks *park.Parks
	lb    *loadbalancer.LoadBalancer
	rec   *obs.Recorder
	log   rtlog.Logger

	startOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New constructs a Runtime. If WithAutoRun(false) was not passed (the
// default is true), the executor goroutines and load balancer are started
// immediately; otherwise call Start explicitly, mirroring the original's
// init_runner_threads-on-first-use behavior collapsed into an explicit
// choice at construction time.
func New(opts ...Option) *Runtime {
	cfg := resolveOptions(opts)
	rt := &Runtime{
		cfg:    cfg,
		sched:  scheduler.New(cfg.numVCPUs),
		parks:  park.New(cfg.numVCPUs),
		rec:    cfg.recorder,
		log:    cfg.logger,
		stopCh: make(chan struct{}),
	}
	rt.lb = loadbalancer.New(rt.sched,
		loadbalancer.WithInterval(cfg.loadBalancerInterval),
		loadbalancer.WithThreshold(cfg.loadBalancerThreshold),
		loadbalancer.WithClock(cfg.clock),
		loadbalancer.WithRecorder(cfg.recorder),
		loadbalancer.WithLogger(cfg.logger),
	)
	if cfg.autoRun {
		rt.Start()
	}
	return rt
}

// Start launches the executor goroutines and the load balancer. Safe to
// call multiple times; only the first call has an effect.
func (rt *Runtime) Start() {
	rt.startOnce.Do(func() {
		for i := 0; i < rt.cfg.numVCPUs; i++ {
			rt.wg.Add(1)
			vcpu := i
			go func() {
				defer rt.wg.Done()
				runExecutor(vcpu, rt.sched, rt.parks, rt.rec, rt.log, rt.stopCh)
			}()
		}
		rt.lb.Start()
	})
}

// Stop signals every executor and the load balancer to drain and exit, and
// blocks until they have. Safe to call at most once.
func (rt *Runtime) Stop() {
	// The load balancer is itself a task, so it must be stopped while the
	// executors are still running to poll it one last time.
	rt.lb.Stop()
	close(rt.stopCh)
	rt.parks.UnparkAll()
	rt.wg.Wait()
}

// SpawnOptions carries per-task scheduling metadata for Spawn, mirroring
// the original's builder (SpawnOptions::new(fut).priority(p).spawn()),
// collapsed to a plain struct since Go favors options-as-data over a
// fluent-chain builder for a two-field configuration.
type SpawnOptions struct {
	Priority priority.SchedPriority
	Affinity task.Affinity
}

// defaultSpawnOptions matches spec.md §6: Normal priority, full affinity.
func (rt *Runtime) defaultSpawnOptions() SpawnOptions {
	return SpawnOptions{
		Priority: priority.SchedNormal,
		Affinity: task.AffinityAll(rt.cfg.numVCPUs),
	}
}

// Spawn hands fut to the scheduler and returns a JoinHandle for its
// eventual output. T must match the type fut's Poll actually produces.
func Spawn[T any](rt *Runtime, fut task.Future, opts ...func(*SpawnOptions)) task.JoinHandle[T] {
	so := rt.defaultSpawnOptions()
	for _, o := range opts {
		o(&so)
	}
	t := task.New(fut, so.Priority, so.Affinity)
	jh := task.NewJoinHandle[T](t)
	rt.rec.Add(obs.MetricTasksSpawned, 1)
	rt.rec.EmitSpawn(context.Background(), obs.SpawnEvent{TaskID: t.ID, Priority: so.Priority.String()})
	rt.sched.Enqueue(t)
	return jh
}

// WithPriority is a SpawnOptions mutator for Spawn's variadic opts.
func WithPriority(p priority.SchedPriority) func(*SpawnOptions) {
	return func(so *SpawnOptions) { so.Priority = p }
}

// WithAffinity is a SpawnOptions mutator for Spawn's variadic opts.
func WithAffinity(a task.Affinity) func(*SpawnOptions) {
	return func(so *SpawnOptions) { so.Affinity = a }
}

// BlockOn spawns fut and blocks the calling goroutine (not a vCPU executor)
// until it completes, returning its output. Mirrors the original's
// block_on: an output slot plus a completion signal, except this uses a
// blocking channel receive rather than busy-spinning on an AtomicBool — Go's
// native blocking-channel-receive is the idiomatic wait primitive here, a
// deliberate improvement over a literal translation (see DESIGN.md).
func BlockOn[T any](rt *Runtime, fut task.Future, opts ...func(*SpawnOptions)) T {
	jh := Spawn[T](rt, fut, opts...)
	joinFut := jh.Future()

	wakeCh := make(chan struct{}, 1)
	wake := func() {
		select {
		case wakeCh <- struct{}{}:
		default:
		}
	}
	for {
		out, ready := joinFut.Poll(wake)
		if ready {
			return out.(task.JoinResult[T]).Value
		}
		<-wakeCh
	}
}

// YieldNow re-enqueues the current task and returns Pending once, giving
// other runnable tasks on this vCPU a chance to run before this one
// resumes. Must only be called from within a task's Poll (i.e. from a
// future running on an executor goroutine).
func YieldNow() task.Future {
	yielded := false
	return task.FutureFunc(func(wake func()) (any, bool) {
		if !yielded {
			yielded = true
			wake()
			return nil, false
		}
		return nil, true
	})
}

// Current returns the Task currently being polled by the calling goroutine,
// or nil outside of a poll.
func Current() *task.Task { return task.Current() }
