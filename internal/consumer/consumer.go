// Package consumer runs the notification queue consumption loop.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jnst/user-notification-service/internal/config"
	"github.com/jnst/user-notification-service/internal/model"
	"github.com/jnst/user-notification-service/internal/queue"
)

const defaultIdleDelay = time.Second

// Processor applies the effect of a decoded notification. It must tolerate
// being called more than once for the same message id.
type Processor interface {
	Process(ctx context.Context, messageID string, n model.Notification) error
}

// DeadLetterStore keeps messages that exhausted their receives.
type DeadLetterStore interface {
	Save(ctx context.Context, dl *model.DeadLetter) error
}

// Options tunes the loop.
type Options struct {
	BatchSize         int
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
	// MaxReceiveCount dead-letters a failing message once it has been
	// received this many times. Zero disables dead-lettering.
	MaxReceiveCount int
	ErrorBackoff    time.Duration
	MaxErrorBackoff time.Duration
	// IdleDelay is slept after an empty batch when WaitTime is zero.
	IdleDelay time.Duration
}

// OptionsFromConfig converts consumer settings.
func OptionsFromConfig(cfg config.ConsumerConfig) Options {
	return Options{
		BatchSize:         cfg.BatchSize,
		VisibilityTimeout: cfg.VisibilityTimeout,
		WaitTime:          cfg.WaitTime,
		MaxReceiveCount:   cfg.MaxReceiveCount,
		ErrorBackoff:      cfg.ErrorBackoff,
		MaxErrorBackoff:   cfg.MaxErrorBackoff,
		IdleDelay:         defaultIdleDelay,
	}
}

// Stats is a snapshot of the consumer counters.
type Stats struct {
	Enabled            bool  `json:"enabled"`
	Running            bool  `json:"running"`
	Batches            int64 `json:"batches"`
	Received           int64 `json:"received"`
	Acked              int64 `json:"acked"`
	DecodeFailures     int64 `json:"decode_failures"`
	ProcessingFailures int64 `json:"processing_failures"`
	AckFailures        int64 `json:"ack_failures"`
	DeadLettered       int64 `json:"dead_lettered"`
	ReceiveErrors      int64 `json:"receive_errors"`
}

type counters struct {
	batches            atomic.Int64
	received           atomic.Int64
	acked              atomic.Int64
	decodeFailures     atomic.Int64
	processingFailures atomic.Int64
	ackFailures        atomic.Int64
	deadLettered       atomic.Int64
	receiveErrors      atomic.Int64
}

// Consumer pulls batches from a queue.Client and dispatches each message to
// a Processor, acknowledging only messages that were handled.
//
// Lifecycle is STOPPED -> Start -> RUNNING -> Stop -> STOPPED. Stop is
// cooperative: a batch already received is processed and acknowledged,
// and no receive is issued after the loop observes the stop.
type Consumer struct {
	client      queue.Client
	processor   Processor
	deadLetters DeadLetterStore
	opts        Options
	logger      *slog.Logger

	running atomic.Bool
	wake    chan struct{}

	mu     sync.Mutex
	ctx    context.Context
	active bool
	done   chan struct{}

	stats counters
}

// New creates a Consumer. A nil client yields a disabled consumer whose
// Start only logs. deadLetters may be nil when dead-lettering is not wanted.
func New(client queue.Client, processor Processor, deadLetters DeadLetterStore, opts Options, logger *slog.Logger) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = defaultIdleDelay
	}

	done := make(chan struct{})
	close(done)

	return &Consumer{
		client:      client,
		processor:   processor,
		deadLetters: deadLetters,
		opts:        opts,
		logger:      logger,
		wake:        make(chan struct{}, 1),
		done:        done,
	}
}

// Enabled reports whether a queue client is configured.
func (c *Consumer) Enabled() bool {
	return c.client != nil
}

// Start launches the loop in its own goroutine. It is a no-op when the
// consumer is disabled or already running. Starting while a stopped loop is
// still finishing its batch re-arms that loop, which then runs under ctx.
func (c *Consumer) Start(ctx context.Context) {
	if !c.Enabled() {
		c.logger.Info("queue not configured, consumer disabled")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.CompareAndSwap(false, true) {
		return
	}

	c.ctx = ctx
	c.drainWake()

	if c.active {
		c.logger.Info("consumer re-armed")
		return
	}

	c.active = true
	c.done = make(chan struct{})

	c.logger.Info("consumer started",
		slog.Int("batch_size", c.opts.BatchSize),
		slog.Duration("visibility_timeout", c.opts.VisibilityTimeout),
		slog.Duration("wait_time", c.opts.WaitTime),
	)

	go c.run()
}

// Stop asks the loop to exit after the current iteration.
// It never blocks and is safe to call from a signal handler.
func (c *Consumer) Stop() {
	if !c.running.Swap(false) {
		return
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Running reports the lifecycle flag.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

// Done returns a channel closed when the loop goroutine has exited.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// Wait blocks until the loop exits or ctx is done.
func (c *Consumer) Wait(ctx context.Context) error {
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Enabled:            c.Enabled(),
		Running:            c.running.Load(),
		Batches:            c.stats.batches.Load(),
		Received:           c.stats.received.Load(),
		Acked:              c.stats.acked.Load(),
		DecodeFailures:     c.stats.decodeFailures.Load(),
		ProcessingFailures: c.stats.processingFailures.Load(),
		AckFailures:        c.stats.ackFailures.Load(),
		DeadLettered:       c.stats.deadLettered.Load(),
		ReceiveErrors:      c.stats.receiveErrors.Load(),
	}
}

func (c *Consumer) run() {
	bo := c.newBackOff()
	receiveOpts := queue.ReceiveOptions{
		MaxMessages:       c.opts.BatchSize,
		VisibilityTimeout: c.opts.VisibilityTimeout,
		WaitTime:          c.opts.WaitTime,
	}

	for {
		ctx, ok := c.shouldContinue()
		if !ok {
			break
		}

		msgs, err := c.client.Receive(ctx, receiveOpts)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			c.stats.receiveErrors.Add(1)
			delay := bo.NextBackOff()
			c.logger.Error("failed to receive messages",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			c.pause(ctx, delay)

			continue
		}

		bo.Reset()
		c.stats.batches.Add(1)
		c.stats.received.Add(int64(len(msgs)))

		if len(msgs) == 0 {
			if c.opts.WaitTime == 0 {
				c.pause(ctx, c.opts.IdleDelay)
			}
			continue
		}

		c.logger.Debug("received batch", slog.Int("message_count", len(msgs)))

		// A received batch is finished even if ctx is canceled meanwhile.
		work := context.WithoutCancel(ctx)
		for _, msg := range msgs {
			c.handle(work, msg)
		}
	}

	c.logger.Info("consumer stopped")
}

// shouldContinue decides under mu whether the loop goes on and returns the
// context of the latest Start. When the loop ends, it is marked inactive and
// done is closed in the same critical section, so a concurrent Start either
// re-arms this loop or spawns a new one.
func (c *Consumer) shouldContinue() (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := c.ctx
	if ctx.Err() == nil && c.running.Load() {
		return ctx, true
	}

	c.running.Store(false)
	c.active = false
	close(c.done)

	return ctx, false
}

// drainWake drops a wake-up left by an earlier Stop. Callers hold mu.
func (c *Consumer) drainWake() {
	select {
	case <-c.wake:
	default:
	}
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	log := c.logger.With(
		slog.String("message_id", msg.ID),
		slog.Int("receive_count", msg.ReceiveCount),
	)

	n, err := model.DecodeNotification(msg.Body)
	if err != nil {
		c.stats.decodeFailures.Add(1)
		log.Error("failed to decode notification", slog.String("error", err.Error()))
		c.deadLetter(ctx, log, msg, err)

		return
	}

	if err := c.process(ctx, msg.ID, n); err != nil {
		c.stats.processingFailures.Add(1)
		log.Error("failed to process notification",
			slog.String("subject", string(n.Subject())),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, log, msg, err)

		return
	}

	c.ack(ctx, log, msg)
}

func (c *Consumer) process(ctx context.Context, messageID string, n model.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.ProcessingError{Subject: n.Subject(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	return c.processor.Process(ctx, messageID, n)
}

func (c *Consumer) ack(ctx context.Context, log *slog.Logger, msg queue.Message) bool {
	if err := c.client.Delete(ctx, msg.ReceiptHandle); err != nil {
		c.stats.ackFailures.Add(1)
		log.Error("failed to acknowledge message", slog.String("error", err.Error()))

		return false
	}

	c.stats.acked.Add(1)
	log.Debug("acknowledged message")

	return true
}

// deadLetter stores and acknowledges msg once it has used up its receives.
// Otherwise msg is left to become visible again.
func (c *Consumer) deadLetter(ctx context.Context, log *slog.Logger, msg queue.Message, cause error) {
	if c.deadLetters == nil || c.opts.MaxReceiveCount <= 0 || msg.ReceiveCount < c.opts.MaxReceiveCount {
		return
	}

	err := c.deadLetters.Save(ctx, &model.DeadLetter{
		MessageID:    msg.ID,
		Body:         msg.Body,
		Reason:       cause.Error(),
		ReceiveCount: msg.ReceiveCount,
	})
	if err != nil {
		log.Error("failed to store dead letter", slog.String("error", err.Error()))
		return
	}

	if c.ack(ctx, log, msg) {
		c.stats.deadLettered.Add(1)
		log.Warn("message dead-lettered", slog.String("reason", cause.Error()))
	}
}

func (c *Consumer) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.ErrorBackoff
	bo.MaxInterval = c.opts.MaxErrorBackoff
	bo.MaxElapsedTime = 0
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = backoff.DefaultInitialInterval
	}
	if bo.MaxInterval < bo.InitialInterval {
		bo.MaxInterval = bo.InitialInterval
	}
	bo.Reset()

	return bo
}

// pause sleeps for d, returning early on Stop or ctx cancellation.
func (c *Consumer) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-c.wake:
	case <-ctx.Done():
	}
}
