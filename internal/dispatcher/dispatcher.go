// Package dispatcher implements the single-threaded Job Dispatcher: it
// promotes the oldest queued event into a job and invokes the handler
// matching the event kind.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/eventqueue"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// pollInterval is how long the dispatcher sleeps when the queue is empty.
const pollInterval = 1 * time.Second

// HandlerFunc handles one queued event of the kind it is registered for.
type HandlerFunc func(ctx context.Context, event *models.QueuedEvent) error

// Dispatcher is a single long-lived worker. At most one job runs at a time
// (§4.3's single-flight invariant) because the benchmark harness requires
// an undisturbed machine for reproducibility.
type Dispatcher struct {
	store    interfaces.Store
	queue    *eventqueue.Queue
	logger   *common.Logger
	handlers map[models.EventKind]HandlerFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Dispatcher with the given per-event-kind handlers.
func New(store interfaces.Store, queue *eventqueue.Queue, logger *common.Logger, handlers map[models.EventKind]HandlerFunc) *Dispatcher {
	return &Dispatcher{store: store, queue: queue, logger: logger, handlers: handlers}
}

// safeGo launches a goroutine with panic recovery and logging, so a panic
// escaping it is logged instead of crashing the process. Handler panics are
// recovered in runOne, so a bug in a single handler invocation cannot kill
// the dispatcher loop.
func (d *Dispatcher) safeGo(name string, fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in dispatcher loop")
			}
		}()
		fn()
	}()
}

// Start launches the dispatcher loop. On process start the dispatcher does
// not try to distinguish "already handled but not yet deleted" from "not
// yet handled": any event still present is replayed (§4.3 startup recovery).
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.safeGo("dispatcher", func() { d.loop(ctx) })
	d.logger.Info().Msg("dispatcher started")
}

// Stop cancels the loop and waits for the in-flight job, if any, to return.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.logger.Info().Msg("dispatcher stopped")
}

func (d *Dispatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, err := d.queue.Next(ctx)
		if err != nil {
			d.logger.Warn().Err(err).Msg("dispatcher: failed to read next queued event")
			if !sleep(ctx, pollInterval) {
				return
			}
			continue
		}
		if event == nil {
			if !sleep(ctx, pollInterval) {
				return
			}
			continue
		}

		d.runOne(ctx, event)
	}
}

// runOne binds a job to event, dispatches to the matching handler, and
// always finishes the job and deletes the event so the queue makes
// progress — the default error policy per §7 is log, advance, not retry.
func (d *Dispatcher) runOne(ctx context.Context, event *models.QueuedEvent) {
	jobID, err := d.store.NewJobForEvent(ctx, event.ID, event.CreatedUTC)
	if err != nil {
		d.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to bind job to event")
		return
	}

	// Tag every log line produced while this job runs with its job ID, so
	// the handler and the bench pipeline it calls into don't need their own
	// copy of the ID to stay traceable.
	ctx = common.ContextWithLogger(ctx, d.logger, jobID)
	jobLogger := common.LoggerFromContext(ctx, d.logger)

	handler, ok := d.handlers[event.Kind]
	if !ok {
		jobLogger.Warn().Str("kind", string(event.Kind)).Msg("no handler registered for event kind")
	} else if err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return handler(ctx, event)
	}(); err != nil {
		jobLogger.Warn().
			Str("kind", string(event.Kind)).
			Err(err).
			Msg("event handler returned an error; advancing queue")
	}

	if err := d.store.JobFinished(ctx, jobID); err != nil {
		jobLogger.Error().Err(err).Msg("failed to mark job finished")
	}
	if err := d.store.DeleteEvent(ctx, event.ID); err != nil {
		jobLogger.Error().Err(err).Str("event_id", event.ID).Msg("failed to delete event")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
