// Package audit consumes ledger events and re-verifies the affected wallet
// by replaying its full transaction log.
package audit

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	kafkax "github.com/ariefcatur/go-bookstore-ledger/internal/kafka"
	"github.com/ariefcatur/go-bookstore-ledger/internal/ledger"
	"github.com/ariefcatur/go-bookstore-ledger/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Service struct {
	Store       bookstore.Repository
	Redis       redis.Cmdable
	ServiceName string
	Log         *slog.Logger
}

// HandleEvent is installed as the consumer handler. Undecodable messages are
// logged and committed; store errors are returned so the offset is not.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		s.Log.Warn("skipping undecodable message", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != bookstore.EventLedgerEntryRecorded {
		return nil
	}

	// Dedup by event id. A Redis failure only costs a repeated check.
	if seen, err := redisx.Processed(ctx, s.Redis, s.ServiceName, env.EventID); err == nil && seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[bookstore.LedgerEntryPayload](env.Payload)
	if err != nil {
		s.Log.Warn("skipping bad ledger payload", "event_id", env.EventID, "error", err)
		return nil
	}

	rep, err := s.Verify(ctx, p)
	if err != nil {
		if !bookstore.IsNotFound(err) && !bookstore.IsValidation(err) {
			return err
		}
		s.Log.Warn("ledger event for unknown account", "event_id", env.EventID,
			"account", string(p.Account), "account_id", p.AccountID, "error", err)
	} else if !rep.OK() {
		attrs := []any{
			"event_id", env.EventID, "trace_id", env.TraceID,
			"account", string(rep.Account), "account_id", rep.AccountID,
			"expected", rep.Replayed.String(), "actual", rep.Balance.String(),
			"mismatches", len(rep.Mismatches),
		}
		if len(rep.Mismatches) > 0 {
			attrs = append(attrs, "first_diverging_seq", rep.Mismatches[0].Seq)
		}
		s.Log.Error("integrity failure: ledger replay diverges", attrs...)
	} else {
		s.Log.Debug("ledger verified", "account", string(rep.Account), "account_id", rep.AccountID,
			"entries", rep.Entries, "balance", rep.Balance.String())
	}

	if err := redisx.MarkProcessed(ctx, s.Redis, s.ServiceName, env.EventID); err != nil {
		s.Log.Warn("dedup mark failed", "event_id", env.EventID, "error", err)
	}
	return nil
}

// Verify replays the wallet named by p.
func (s *Service) Verify(ctx context.Context, p bookstore.LedgerEntryPayload) (*ledger.Report, error) {
	return ledger.Verify(ctx, s.Store, p.Account, p.AccountID)
}
