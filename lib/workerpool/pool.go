package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/giggle/lib/fault"
	"github.com/ValentinKolb/giggle/lib/queue"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("workerpool")

// ErrStopped is returned by Submit after Shutdown was called
var ErrStopped = fault.New(fault.KindLogicFailure, "workerpool.Submit", "submit on stopped pool")

// Task is a unit of work. Its return values are delivered through the Future.
type Task func() (interface{}, error)

// job is a queued task. A nil *job is the stop marker.
type job struct {
	task      Task
	future    *Future
	submitted time.Time
}

// Pool is a fixed-size worker pool. Create it with New.
type Pool struct {
	name    string
	workers int
	tasks   *queue.Queue[*job]

	mu       sync.RWMutex // orders Submit against Shutdown
	stopping bool

	wg         sync.WaitGroup
	invalidate sync.Once
	busy       atomic.Int64
	pending    atomic.Int64

	registry  gometrics.Registry
	submitted gometrics.Counter
	completed gometrics.Counter
	failed    gometrics.Counter
	queueWait gometrics.Timer
	runTime   gometrics.Timer
}

// Option configures a Pool
type Option func(*Pool)

// WithName sets the name used in log messages
func WithName(name string) Option {
	return func(p *Pool) { p.name = name }
}

// WithRegistry records the pool metrics in r instead of a private registry
func WithRegistry(r gometrics.Registry) Option {
	return func(p *Pool) { p.registry = r }
}

// Stats is a snapshot of the pool state
type Stats struct {
	Workers     int           `json:"workers"`
	Busy        int64         `json:"busy"`
	Pending     int64         `json:"pending"`
	Submitted   int64         `json:"submitted"`
	Completed   int64         `json:"completed"`
	Failed      int64         `json:"failed"`
	MeanWait    time.Duration `json:"mean_wait_ns"`
	MeanRunTime time.Duration `json:"mean_run_time_ns"`
	P99RunTime  time.Duration `json:"p99_run_time_ns"`
}

// New starts a pool with the given number of workers
func New(workers int, opts ...Option) (*Pool, error) {
	if workers <= 0 {
		return nil, fault.Newf(fault.KindLogicFailure, "workerpool.New", "worker count must be positive, got %d", workers)
	}

	p := &Pool{
		name:    "workerpool",
		workers: workers,
		tasks:   queue.New[*job](),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = gometrics.NewRegistry()
	}

	p.submitted = gometrics.GetOrRegisterCounter(p.name+".submitted", p.registry)
	p.completed = gometrics.GetOrRegisterCounter(p.name+".completed", p.registry)
	p.failed = gometrics.GetOrRegisterCounter(p.name+".failed", p.registry)
	p.queueWait = gometrics.GetOrRegisterTimer(p.name+".queue_wait", p.registry)
	p.runTime = gometrics.GetOrRegisterTimer(p.name+".run_time", p.registry)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	Logger.Debugf("%s: started %d workers", p.name, workers)
	return p, nil
}

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// Submit queues a task and returns its Future.
// It fails with ErrStopped once Shutdown has begun.
func (p *Pool) Submit(task Task) (*Future, error) {
	if task == nil {
		return nil, fault.New(fault.KindLogicFailure, "workerpool.Submit", "nil task")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopping {
		return nil, ErrStopped
	}

	f := newFuture()
	p.pending.Add(1)
	if !p.tasks.Push(&job{task: task, future: f, submitted: time.Now()}) {
		p.pending.Add(-1)
		return nil, ErrStopped
	}
	p.submitted.Inc(1)
	return f, nil
}

// Go submits a function without a result value
func (p *Pool) Go(fn func()) (*Future, error) {
	if fn == nil {
		return nil, fault.New(fault.KindLogicFailure, "workerpool.Go", "nil function")
	}
	return p.Submit(func() (interface{}, error) {
		fn()
		return nil, nil
	})
}

// --------------------------------------------------------------------------
// Workers
// --------------------------------------------------------------------------

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		j, ok := p.tasks.WaitPop()
		// invalid queue or stop marker -> exit
		if !ok || j == nil {
			return
		}
		p.pending.Add(-1)
		p.run(j)
	}
}

func (p *Pool) run(j *job) {
	p.busy.Add(1)
	defer p.busy.Add(-1)

	p.queueWait.UpdateSince(j.submitted)
	start := time.Now()
	value, err := call(j.task)
	p.runTime.UpdateSince(start)

	if err != nil {
		p.failed.Inc(1)
	}
	p.completed.Inc(1)
	j.future.complete(value, err)
}

// call runs the task and turns a panic into an error
func call(task Task) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fault.Newf(fault.KindLogicFailure, "workerpool.run", "task panicked: %v", r)
		}
	}()
	return task()
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// stop marks the pool as stopping and queues one stop marker per worker
func (p *Pool) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping {
		return
	}
	p.stopping = true
	for i := 0; i < p.workers; i++ {
		p.tasks.Push(nil)
	}
	Logger.Debugf("%s: stopping, %d tasks pending", p.name, p.pending.Load())
}

// Shutdown stops accepting tasks, waits until all accepted tasks finished and
// all workers exited. It is safe to call multiple times.
func (p *Pool) Shutdown() {
	p.stop()
	p.wg.Wait()
	p.invalidate.Do(p.tasks.Invalidate)
}

// ShutdownContext is like Shutdown but returns a KindTimeout error if ctx is
// done before the workers exited. The workers keep draining in the background.
func (p *Pool) ShutdownContext(ctx context.Context) error {
	p.stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.invalidate.Do(p.tasks.Invalidate)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fault.Wrap(fault.KindTimeout, "workerpool.ShutdownContext", ctx.Err())
	}
}

// Stopping reports whether Shutdown was called
func (p *Pool) Stopping() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopping
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.workers
}

// Registry returns the metrics registry of the pool
func (p *Pool) Registry() gometrics.Registry {
	return p.registry
}

// Stats returns a snapshot of the pool state
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:     p.workers,
		Busy:        p.busy.Load(),
		Pending:     p.pending.Load(),
		Submitted:   p.submitted.Count(),
		Completed:   p.completed.Count(),
		Failed:      p.failed.Count(),
		MeanWait:    time.Duration(p.queueWait.Mean()),
		MeanRunTime: time.Duration(p.runTime.Mean()),
		P99RunTime:  time.Duration(p.runTime.Percentile(0.99)),
	}
}
