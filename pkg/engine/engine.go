// Package engine implements the interception engine (C6): one worker per
// bound kernel queue, dequeuing packets, applying the active per-direction
// recipe, and forwarding or dropping the result.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/queue"
	"github.com/jhkim/fragscapy-go/pkg/telemetry"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// Engine owns every Worker bound to this run's queues, plus the shared
// ingress/egress recipe and capture-path reference cells spec.md §5
// describes as the only state shared between the driver and the workers.
type Engine struct {
	ingress, egress             atomicRecipe
	localCapture, remoteCapture atomicPath
	captures                    *captureSet
	sender                      packet.Sender
	log                         *telemetry.Logger
	metrics                     *telemetry.Metrics

	mu      sync.Mutex
	workers []*Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an Engine that will raw-send egress packets via sender and
// log/count through log/metrics.
func New(sender packet.Sender, log *telemetry.Logger, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		captures: newCaptureSet(),
		sender:   sender,
		log:      log,
		metrics:  metrics,
	}
}

// BindQueue adds a Worker bound to q, processing packets of the given
// direction. Must be called before Start.
func (e *Engine) BindQueue(id string, q queue.Queue, dir queue.Direction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workers = append(e.workers, newWorker(id, q, dir, e))
}

// SetIngressRecipe atomically installs the active ingress recipe.
func (e *Engine) SetIngressRecipe(r *transform.Recipe) { e.ingress.Set(r) }

// SetEgressRecipe atomically installs the active egress recipe.
func (e *Engine) SetEgressRecipe(r *transform.Recipe) { e.egress.Set(r) }

// SetCapturePaths atomically updates the local-view and remote-view
// capture file paths; either may be "" to disable that capture.
func (e *Engine) SetCapturePaths(local, remote string) {
	e.localCapture.Set(local)
	e.remoteCapture.Set(remote)
}

// Start launches every bound Worker's dequeue loop in its own goroutine.
// Returns an error if no queue has been bound.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.workers) == 0 {
		return fmt.Errorf("engine: no queues bound")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	for _, w := range e.workers {
		w := w
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			w.Run(runCtx)
		}()
	}
	return nil
}

// Stop requests every worker finish its current packet and exit, cancels
// the run context so workers blocked in Recv return, then blocks until all
// started workers have joined.
func (e *Engine) Stop() {
	e.mu.Lock()
	workers := append([]*Worker(nil), e.workers...)
	cancel := e.cancel
	e.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Workers returns the bound workers, for state inspection in tests.
func (e *Engine) Workers() []*Worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Worker(nil), e.workers...)
}
