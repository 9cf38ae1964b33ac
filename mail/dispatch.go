package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

var ErrQueueFull = errors.New("mail queue full")

const queueSize = 128

// Dispatcher sends mail in the background on a bounded number of workers.
// Enqueue never waits on the network; Close drains the queue.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	queue   chan *Message
	pool    *pool.Pool
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

func NewDispatcher(sender Sender, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		sender:  sender,
		timeout: time.Minute,
		queue:   make(chan *Message, queueSize),
		pool:    pool.New().WithMaxGoroutines(workers),
		done:    make(chan struct{}),
		logger:  slog.With("d", "mail"),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for msg := range d.queue {
		msg := msg
		// Go blocks while all workers are busy, which is what bounds the pool.
		d.pool.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			start := time.Now()
			if err := d.sender.Send(ctx, msg); err != nil {
				d.logger.Error("Failed to send mail", "to", msg.To, "kind", msg.Kind, "error", err)
				return
			}
			d.logger.Debug("Sent mail", "to", msg.To, "kind", msg.Kind,
				"elapsed", time.Since(start).Round(time.Millisecond))
		})
	}
	d.pool.Wait()
}

// Enqueue hands msg to the workers. It fails only if the queue is full or closed.
func (d *Dispatcher) Enqueue(msg *Message) (err error) {
	defer func() {
		if recover() != nil {
			err = errors.New("mail dispatcher closed")
		}
	}()
	select {
	case d.queue <- msg:
		return nil
	default:
		d.logger.Warn("Dropping mail, queue full", "to", msg.To, "kind", msg.Kind)
		return ErrQueueFull
	}
}

// Close stops accepting mail and waits for queued messages to be sent.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	<-d.done
}
