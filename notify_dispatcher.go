package goCred

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type notifyDispatcher struct {
	cfg       NotifyConfig
	notifier  Notifier
	logger    *slog.Logger
	metrics   *Metrics
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once

	// mu guards closed. Enqueue holds it for reading across the send so Close
	// cannot stop the workers while a message is on its way into ch.
	mu     sync.RWMutex
	closed bool
}

func newNotifyDispatcher(cfg NotifyConfig, notifier Notifier, logger *slog.Logger, metrics *Metrics) *notifyDispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	d := &notifyDispatcher{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		ch:       make(chan Message, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.run()
	}

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(msg Message) {
	backoff := d.cfg.Backoff
	var err error
	attempt := 1

	for ; attempt <= d.cfg.MaxAttempts; attempt++ {
		err = d.send(msg)
		if err == nil {
			d.metrics.Inc(MetricNotificationSent)
			return
		}

		d.logger.Warn("notification delivery failed",
			"to", msg.To,
			"subject", msg.Subject,
			"attempt", attempt,
			"error", err,
		)
		if attempt < d.cfg.MaxAttempts && backoff > 0 {
			if !d.pause(backoff) {
				break
			}
			backoff *= 2
		}
	}

	d.metrics.Inc(MetricNotificationFailed)
	d.logger.Error("notification abandoned",
		"to", msg.To,
		"subject", msg.Subject,
		"attempts", min(attempt, d.cfg.MaxAttempts),
		"error", err,
	)
}

// pause waits for delay and reports false when Close interrupts it.
func (d *notifyDispatcher) pause(delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-d.done:
		return false
	}
}

func (d *notifyDispatcher) send(msg Message) error {
	ctx := context.Background()
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	return d.notifier.Send(ctx, msg)
}

// Enqueue hands msg to the workers. It never reports delivery errors. With
// DropIfFull a full queue drops msg and counts it, otherwise Enqueue waits for
// room until ctx is done.
func (d *notifyDispatcher) Enqueue(ctx context.Context, msg Message) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
		default:
			d.dropped.Add(1)
			d.logger.Warn("notification dropped, queue full", "to", msg.To, "subject", msg.Subject)
		}
		return
	}

	select {
	case d.ch <- msg:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// Retries still pending backoff are abandoned.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of messages discarded because the queue was full.
func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
