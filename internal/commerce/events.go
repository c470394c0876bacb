package commerce

import (
	"context"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	kafkax "github.com/ariefcatur/go-bookstore-ledger/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type traceKey struct{}

// WithTrace carries the request id into emitted events.
func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func (s *Service) emit(ctx context.Context, eventType, key, correlationID string, payload any) {
	if s.Events == nil {
		return
	}
	ev := bookstore.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Opts.ServiceName,
		TraceID:       traceID(ctx),
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.Publish(bookstore.PartitionKey(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) emitLedger(ctx context.Context, correlationID string, txs ...*bookstore.Transaction) {
	for _, t := range txs {
		if t == nil {
			continue
		}
		p := bookstore.LedgerPayload(t)
		s.emit(ctx, bookstore.EventLedgerEntryRecorded, p.AccountID, correlationID, p)
	}
}
