package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/queue"
	"github.com/jhkim/fragscapy-go/pkg/telemetry"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// WorkerState is the lifecycle of one Worker, per spec.md §4.6.
type WorkerState int32

const (
	StateNotStarted WorkerState = iota
	StateRunning
	StateStopping
	StateStopped
)

// Worker dequeues from one bound queue.Queue and applies the engine's
// active recipe for that queue's direction. Multiple Workers (e.g. one per
// queue family/chain combination) share the same ingress/egress recipe and
// capture-path reference cells, owned by the enclosing Engine.
type Worker struct {
	id        string
	q         queue.Queue
	direction queue.Direction

	ingress, egress             *atomicRecipe
	localCapture, remoteCapture *atomicPath
	captures                    *captureSet
	sender                      packet.Sender
	log                         *telemetry.Logger
	metrics                     *telemetry.Metrics

	state int32 // WorkerState, accessed atomically
	done  chan struct{}
}

func newWorker(id string, q queue.Queue, dir queue.Direction, eng *Engine) *Worker {
	return &Worker{
		id:            id,
		q:             q,
		direction:     dir,
		ingress:       &eng.ingress,
		egress:        &eng.egress,
		localCapture:  &eng.localCapture,
		remoteCapture: &eng.remoteCapture,
		captures:      eng.captures,
		sender:        eng.sender,
		log:           eng.log,
		metrics:       eng.metrics,
		done:          make(chan struct{}),
	}
}

func (w *Worker) State() WorkerState { return WorkerState(atomic.LoadInt32(&w.state)) }

func (w *Worker) setState(s WorkerState) { atomic.StoreInt32(&w.state, int32(s)) }

// Run executes the worker's dequeue loop until ctx is canceled or Stop is
// called. It moves from not-started to running, and to stopped when the
// loop returns, even on a queue error; it passes through stopping only when
// Stop was called or no recipe was active.
func (w *Worker) Run(ctx context.Context) {
	w.setState(StateRunning)
	defer func() {
		w.setState(StateStopped)
		close(w.done)
	}()

	for {
		if w.State() == StateStopping {
			return
		}
		pkt, err := w.q.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error("queue recv failed, worker exiting", "worker", w.id, "err", err)
			return
		}
		if w.State() == StateStopping {
			// Finish nothing further; the packet that was already dequeued
			// is accepted unchanged so the kernel is not left waiting.
			_ = w.q.SetVerdict(pkt.PacketID, queue.VerdictAccept, nil)
			return
		}
		w.handle(pkt)
	}
}

// Stop requests the worker finish its current packet and exit its loop.
// It does not block; call Wait to join.
func (w *Worker) Stop() {
	if w.State() == StateRunning {
		w.setState(StateStopping)
	}
}

// Wait blocks until the worker's loop has returned.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) handle(qp queue.Packet) {
	direction := w.direction

	// Step 1: capture inversion. The "remote side" is what leaves/arrives
	// before our rewrite: for ingress that's the dequeued bytes, for egress
	// it is what we are about to send after rewriting.
	if direction == queue.DirectionIngress {
		if err := w.captures.Append(w.remoteCapture.Get(), qp.Data); err != nil {
			w.log.Warn("capture write failed", "worker", w.id, "err", err)
		}
	}

	// Step 2: parse.
	pkt, err := packet.New(qp.Data, packet.LinkNone)
	if err != nil {
		w.log.Warn("packet parse failed, accepting unchanged", "worker", w.id, "err", err)
		w.metrics.PacketsSeen.Inc()
		_ = w.q.SetVerdict(qp.PacketID, queue.VerdictAccept, nil)
		return
	}
	w.metrics.PacketsSeen.Inc()
	pl := packet.NewList()
	_ = pl.Add(pkt, pkt.Delay())

	// Step 3: apply the active recipe for this direction, under its own
	// read lock for the duration of one Apply.
	var recipe *transform.Recipe
	if direction == queue.DirectionIngress {
		recipe = w.ingress.Get()
	} else {
		recipe = w.egress.Get()
	}
	if recipe == nil {
		w.log.Error("no active recipe set, worker exiting", "worker", w.id, "direction", direction)
		w.setState(StateStopping)
		_ = w.q.SetVerdict(qp.PacketID, queue.VerdictAccept, nil)
		return
	}
	result, err := recipe.Apply(pl)
	if err != nil {
		var operr *transform.OperatorError
		if errors.As(err, &operr) {
			w.log.Warn("operator error, accepting packet unchanged", "worker", w.id, "operator", operr.Operator, "err", operr.Err)
		} else {
			w.log.Warn("recipe apply failed, accepting packet unchanged", "worker", w.id, "err", err)
		}
		w.metrics.OperatorErrors.Inc()
		_ = w.q.SetVerdict(qp.PacketID, queue.VerdictAccept, nil)
		return
	}

	if direction == queue.DirectionIngress {
		w.postIngress(qp, result)
	} else {
		w.postEgress(qp, result)
	}
}

// postIngress implements spec.md §4.6 step 4: the kernel re-injection path
// accepts only a single packet per dequeue.
func (w *Worker) postIngress(qp queue.Packet, result *packet.List) {
	switch result.Len() {
	case 0:
		w.metrics.PacketsDropped.Inc()
		_ = w.q.SetVerdict(qp.PacketID, queue.VerdictDrop, nil)
	case 1:
		out, err := result.At(0)
		if err != nil {
			w.log.Warn("ingress result packet fetch failed, accepting original", "worker", w.id, "err", err)
			_ = w.q.SetVerdict(qp.PacketID, queue.VerdictAccept, nil)
			return
		}
		w.metrics.PacketsMangled.Inc()
		if err := w.captures.Append(w.localCapture.Get(), out.Bytes()); err != nil {
			w.log.Warn("capture write failed", "worker", w.id, "err", err)
		}
		_ = w.q.SetVerdict(qp.PacketID, queue.VerdictMangle, out.Bytes())
	default:
		w.log.Warn("ingress recipe produced multiple packets; kernel accepts one, dropping the rest", "worker", w.id, "count", result.Len())
		out, err := result.At(0)
		if err != nil {
			w.log.Warn("ingress result packet fetch failed, accepting original", "worker", w.id, "err", err)
			_ = w.q.SetVerdict(qp.PacketID, queue.VerdictAccept, nil)
			return
		}
		w.metrics.PacketsMangled.Inc()
		if err := w.captures.Append(w.localCapture.Get(), out.Bytes()); err != nil {
			w.log.Warn("capture write failed", "worker", w.id, "err", err)
		}
		_ = w.q.SetVerdict(qp.PacketID, queue.VerdictMangle, out.Bytes())
	}
}

// postEgress implements spec.md §4.6 step 5: every resulting packet is
// raw-sent honoring delays, and the original kernel packet is dropped
// since it is replaced by the user-space re-injection.
func (w *Worker) postEgress(qp queue.Packet, result *packet.List) {
	for _, out := range result.Items() {
		if err := w.captures.Append(w.remoteCapture.Get(), out.Bytes()); err != nil {
			w.log.Warn("capture write failed", "worker", w.id, "err", err)
		}
	}
	if err := result.SendAll(w.sender); err != nil {
		w.log.Warn("raw send failed", "worker", w.id, "err", err)
	}
	w.metrics.PacketsDropped.Inc()
	_ = w.q.SetVerdict(qp.PacketID, queue.VerdictDrop, nil)
}
