package service

import (
	"context"
	"sync"

	"cosmossdk.io/log"

	"github.com/coordination-labs/auction-sdk/auction"
)

// ResultConsumer is the downstream consensus / bundle-proposal component.
// Results arrive exactly once per sealed window, in window-id order.
type ResultConsumer interface {
	ConsumeResult(result *auction.AuctionResult)
}

// RevenueConsumer is the economic/treasury coordinator fed by the
// revenue-split stream.
type RevenueConsumer interface {
	ConsumeSplit(split auction.RevenueSplit)
}

// Emitter forwards sealed results to downstream consumers without blocking
// the sealer. The manager hands results over already ordered and
// deduplicated; the emitter preserves that order on a single forwarding
// goroutine.
type Emitter struct {
	logger   log.Logger
	results  []ResultConsumer
	revenues []RevenueConsumer

	mu     sync.Mutex
	queue  []*auction.AuctionResult
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

var _ auction.ResultSink = (*Emitter)(nil)

// NewEmitter builds an emitter over the given consumers.
func NewEmitter(logger log.Logger, results []ResultConsumer, revenues []RevenueConsumer) *Emitter {
	return &Emitter{
		logger:   logger.With("module", "emitter"),
		results:  results,
		revenues: revenues,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// PublishResult enqueues a sealed result. Never blocks the caller.
func (e *Emitter) PublishResult(result *auction.AuctionResult) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, result)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Start runs the forwarding loop until the context is canceled. Queued
// results are drained before returning.
func (e *Emitter) Start(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.closed = true
			e.mu.Unlock()
			e.drain()
			return
		case <-e.wake:
			e.drain()
		}
	}
}

// Done is closed once the forwarding loop has exited.
func (e *Emitter) Done() <-chan struct{} {
	return e.done
}

func (e *Emitter) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		result := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		for _, c := range e.results {
			c.ConsumeResult(result)
		}
		split := result.Split()
		for _, c := range e.revenues {
			c.ConsumeSplit(split)
		}

		e.logger.Debug("emitted sealed result",
			"window_id", result.WindowID,
			"winners", len(result.WinningTransactions),
			"total_revenue", result.TotalRevenue,
		)
	}
}
