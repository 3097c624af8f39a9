package inspect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	outcomeAnswered = "answered"
	outcomeTimedOut = "timed_out"
	outcomeExpired  = "expired"
	outcomeNotReady = "not_ready"
	outcomeCanceled = "canceled"
	outcomeClosed   = "closed"
)

// Result is the one-shot outcome of a queued lookup.
type Result struct {
	Item item.Record
	Err  error
}

type queueItem struct {
	id         string
	ref        link.Reference
	enqueuedAt time.Time
	done       chan Result
	canceled   atomic.Bool
	once       sync.Once
}

func (qi *queueItem) resolve(res Result, outcome string, dispatched time.Duration) {
	qi.once.Do(func() {
		qi.done <- res
		observability.RecordQueueOutcome(outcome, dispatched)
		log.Debug().
			Str("queue_item", qi.id).
			Str("asset", qi.ref.AssetID).
			Str("outcome", outcome).
			Dur("age", time.Since(qi.enqueuedAt)).
			Msg("inspect.queue resolved")
	})
}

// Pending is a caller's handle on a queued lookup.
type Pending struct {
	qi *queueItem
}

// Done yields exactly one Result.
func (p *Pending) Done() <-chan Result {
	return p.qi.done
}

// Cancel abandons the lookup. A canceled item is dropped before dispatch;
// if it is already in flight its answer is discarded.
func (p *Pending) Cancel() {
	p.qi.canceled.Store(true)
}

// Wait blocks for the result or ctx. On ctx expiry the item is canceled.
func (p *Pending) Wait(ctx context.Context) (item.Record, error) {
	select {
	case res := <-p.qi.done:
		return res.Item, res.Err
	case <-ctx.Done():
		p.Cancel()
		return item.Record{}, ctx.Err()
	}
}

// Submit enqueues an unmasked lookup. It fails synchronously with
// ErrQueueFull when Capacity items are already waiting.
func (c *Client) Submit(info link.Info) (*Pending, error) {
	if !info.Unmasked() || info.Ref == nil {
		return nil, ErrNotUnmasked
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	var pruned []evictedItem
	if len(c.queue) >= c.cfg.Capacity {
		pruned = c.pruneCanceledLocked()
	}
	defer resolveEvicted(pruned)
	defer c.mu.Unlock()
	if len(c.queue) >= c.cfg.Capacity {
		log.Warn().Int("capacity", c.cfg.Capacity).Str("asset", info.Ref.AssetID).Msg("inspect.Submit queue full")
		return nil, fmt.Errorf("%w: capacity %d", ErrQueueFull, c.cfg.Capacity)
	}

	qi := &queueItem{
		id:         uuid.NewString(),
		ref:        *info.Ref,
		enqueuedAt: time.Now(),
		done:       make(chan Result, 1),
	}
	c.queue = append(c.queue, qi)
	observability.SetQueueDepth(len(c.queue))
	log.Debug().Str("queue_item", qi.id).Str("asset", qi.ref.AssetID).Int("depth", len(c.queue)).Msg("inspect.Submit queued")
	c.kickLocked()
	return &Pending{qi: qi}, nil
}

// Inspect resolves info through the queue and blocks until it resolves or
// ctx ends.
func (c *Client) Inspect(ctx context.Context, info link.Info) (item.Record, error) {
	p, err := c.Submit(info)
	if err != nil {
		return item.Record{}, err
	}
	return p.Wait(ctx)
}

// QueueDepth reports items waiting, including the one in flight.
func (c *Client) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Client) kickLocked() {
	if c.draining || c.closed || len(c.queue) == 0 {
		return
	}
	c.draining = true
	go c.drain()
}

// drain is the single worker. It exits when the queue is empty.
func (c *Client) drain() {
	for {
		if !c.waitTurn() {
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		evicted := c.evictLocked(time.Now())
		if len(c.queue) == 0 {
			c.draining = false
			c.mu.Unlock()
			resolveEvicted(evicted)
			return
		}
		head := c.queue[0]
		if c.state != Ready {
			c.popHeadLocked(head)
			c.mu.Unlock()
			resolveEvicted(evicted)
			head.resolve(Result{Err: ErrSessionNotReady}, outcomeNotReady, 0)
			continue
		}
		answer := make(chan Result, 1)
		c.inflight = &inflight{itemID: head.ref.AssetID, answer: answer}
		c.mu.Unlock()
		resolveEvicted(evicted)

		res, outcome, took := c.dispatch(head, answer)

		c.mu.Lock()
		if c.inflight != nil && c.inflight.answer == answer {
			if outcome == outcomeTimedOut {
				// the answer may still arrive while a later request is in flight
				c.owed++
			}
			c.inflight = nil
		}
		c.popHeadLocked(head)
		c.lastResolved = time.Now()
		c.mu.Unlock()

		head.resolve(res, outcome, took)
	}
}

// waitTurn enforces RequestDelay between the last resolved dispatch and the
// next one, across drain restarts.
func (c *Client) waitTurn() bool {
	c.mu.Lock()
	wait := time.Until(c.lastResolved.Add(c.cfg.RequestDelay))
	c.mu.Unlock()
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) dispatch(head *queueItem, answer chan Result) (Result, string, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	observability.RecordDispatch()
	log.Debug().Str("queue_item", head.id).Str("asset", head.ref.AssetID).Msg("inspect.dispatch")

	if err := c.session.Request(ctx, head.ref); err != nil {
		log.Warn().Err(err).Str("queue_item", head.id).Msg("inspect.dispatch request failed")
		return Result{Err: fmt.Errorf("%w: %v", ErrSessionNotReady, err)}, outcomeNotReady, time.Since(start)
	}

	select {
	case res := <-answer:
		outcome := outcomeAnswered
		if res.Err != nil {
			outcome = outcomeNotReady
			if errors.Is(res.Err, ErrClientClosed) {
				outcome = outcomeClosed
			}
		}
		return res, outcome, time.Since(start)
	case <-ctx.Done():
		log.Warn().Str("queue_item", head.id).Dur("timeout", c.cfg.RequestTimeout).Msg("inspect.dispatch timed out")
		return Result{Err: ErrRequestTimedOut}, outcomeTimedOut, time.Since(start)
	case <-c.done:
		return Result{Err: ErrClientClosed}, outcomeClosed, time.Since(start)
	}
}

type evictedItem struct {
	qi      *queueItem
	outcome string
}

// evictLocked removes canceled items and items older than QueueExpiry.
func (c *Client) evictLocked(now time.Time) []evictedItem {
	return c.removeLocked(func(qi *queueItem) string {
		switch {
		case qi.canceled.Load():
			return outcomeCanceled
		case now.Sub(qi.enqueuedAt) > c.cfg.QueueExpiry:
			return outcomeExpired
		default:
			return ""
		}
	})
}

// pruneCanceledLocked frees the capacity held by abandoned callers. The
// in-flight head is left for the drain loop to resolve.
func (c *Client) pruneCanceledLocked() []evictedItem {
	var head *queueItem
	if c.inflight != nil && len(c.queue) > 0 {
		head = c.queue[0]
	}
	return c.removeLocked(func(qi *queueItem) string {
		if qi != head && qi.canceled.Load() {
			return outcomeCanceled
		}
		return ""
	})
}

// removeLocked drops every item for which outcome returns a non-empty value.
func (c *Client) removeLocked(outcome func(*queueItem) string) []evictedItem {
	var out []evictedItem
	kept := c.queue[:0]
	for _, qi := range c.queue {
		if o := outcome(qi); o != "" {
			out = append(out, evictedItem{qi: qi, outcome: o})
			continue
		}
		kept = append(kept, qi)
	}
	for i := len(kept); i < len(c.queue); i++ {
		c.queue[i] = nil
	}
	c.queue = kept
	if len(out) > 0 {
		observability.SetQueueDepth(len(c.queue))
	}
	return out
}

func resolveEvicted(items []evictedItem) {
	for _, e := range items {
		err := ErrRequestExpired
		if e.outcome == outcomeCanceled {
			err = context.Canceled
		}
		e.qi.resolve(Result{Err: err}, e.outcome, 0)
	}
}

func (c *Client) popHeadLocked(head *queueItem) {
	if len(c.queue) == 0 || c.queue[0] != head {
		return
	}
	c.queue[0] = nil
	c.queue = c.queue[1:]
	observability.SetQueueDepth(len(c.queue))
}
