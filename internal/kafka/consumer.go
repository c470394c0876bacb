package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	log        *slog.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, backoff: 200 * time.Millisecond, maxBackoff: 10 * time.Second}
}

// Start dispatches messages to a pool of workers until ctx ends. Messages of
// one partition key may be handled concurrently; handlers must be idempotent.
// A failing message is retried until it succeeds or ctx ends, and a
// partition's offset only advances past messages that were handled.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	marks := newWatermarks()
	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, id, h, m) {
					continue
				}
				marks.done(m, func(upTo kafka.Message) {
					if err := c.r.CommitMessages(ctx, upTo); err != nil {
						c.log.Error("commit failed", "worker", id, "partition", upTo.Partition, "offset", upTo.Offset, "error", err)
					}
				})
			}
		}(i)
	}
	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		marks.fetched(m)
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle runs h until it succeeds. It reports false when ctx ended first.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Error("handler failed", "worker", worker, "partition", m.Partition, "offset", m.Offset,
			"attempt", attempt, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait = wait * 2; wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
}

// watermarks tracks fetched offsets per partition and yields the highest
// message below which everything has been handled.
type watermarks struct {
	mu      sync.Mutex
	pending map[int][]int64
	handled map[int]map[int64]kafka.Message
}

func newWatermarks() *watermarks {
	return &watermarks{pending: map[int][]int64{}, handled: map[int]map[int64]kafka.Message{}}
}

func (w *watermarks) fetched(m kafka.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[m.Partition] = append(w.pending[m.Partition], m.Offset)
}

// done records m and calls commit, under the lock, when the contiguous
// handled prefix of its partition grew.
func (w *watermarks) done(m kafka.Message, commit func(kafka.Message)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	hs := w.handled[m.Partition]
	if hs == nil {
		hs = map[int64]kafka.Message{}
		w.handled[m.Partition] = hs
	}
	hs[m.Offset] = m

	queue := w.pending[m.Partition]
	var upTo *kafka.Message
	for len(queue) > 0 {
		h, ok := hs[queue[0]]
		if !ok {
			break
		}
		delete(hs, queue[0])
		queue = queue[1:]
		upTo = &h
	}
	w.pending[m.Partition] = queue
	if upTo != nil {
		commit(*upTo)
	}
}
