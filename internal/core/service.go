// Package core exposes the event service: transactional partial imports,
// fee computation and part renames, with pluggable observability and an
// import archive.
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eventcore/internal/fee"
	"eventcore/internal/infra/blob"
	"eventcore/internal/partial"
	"eventcore/pkg/domain"
)

// Service wires the persistent store, the import engine and the fee
// calculator behind a transactional API.
type Service struct {
	store   domain.PersistentStore
	archive blob.Store
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithArchive attaches an archive store that retains accepted import
// payloads.
func WithArchive(a blob.Store) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock overrides the wall clock, for tests.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.clock = fn
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) instrument(ctx context.Context, operation string) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	return ctx, func(err error) {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
		span.End(err)
	}
}

// ImportResult is the outcome of a partial import.
type ImportResult struct {
	ImportID string            `json:"import_id,omitempty"`
	DryRun   bool              `json:"dry_run"`
	Token    string            `json:"token"`
	Delta    partial.ChangeSet `json:"delta"`
	Previous partial.ChangeSet `json:"previous"`
	Changes  []domain.Change   `json:"-"`
}

// archiveRecord is the JSON document retained per accepted import.
type archiveRecord struct {
	ImportID   string            `json:"import_id"`
	EventID    int64             `json:"event_id"`
	Summary    string            `json:"summary,omitempty"`
	Token      string            `json:"token"`
	Delta      partial.ChangeSet `json:"delta"`
	Previous   partial.ChangeSet `json:"previous"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// PartialImport applies a delta payload to the event. A dry run executes
// the full reconciliation and rolls the transaction back, so its token
// and change sets are identical to the committing run that follows.
func (s *Service) PartialImport(ctx context.Context, eventID int64, delta partial.Delta, expectedToken string, dryRun bool) (ImportResult, error) {
	ctx, done := s.instrument(ctx, "partial_import")
	var retErr error
	defer func() { done(retErr) }()

	var outcome partial.Outcome
	changes, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		out, err := partial.Run(tx, eventID, delta, expectedToken)
		if err != nil {
			return err
		}
		outcome = out
		if dryRun {
			return domain.ErrRollback
		}
		return nil
	})
	if err != nil {
		retErr = err
		s.logger.Error("partial import failed", "event_id", eventID, "dry_run", dryRun, "error", err)
		return ImportResult{}, err
	}

	result := ImportResult{
		DryRun:   dryRun,
		Token:    outcome.Token,
		Delta:    outcome.Delta,
		Previous: outcome.Previous,
		Changes:  changes,
	}
	if dryRun {
		s.logger.Debug("partial import previewed", "event_id", eventID, "token", outcome.Token)
		return result, nil
	}
	result.ImportID = uuid.NewString()
	s.logger.Info("partial import committed",
		"event_id", eventID, "import_id", result.ImportID, "token", outcome.Token, "changes", len(changes))
	s.archiveImport(ctx, eventID, delta.Summary, result)
	return result, nil
}

// archiveImport retains the accepted payload for audit. Archive failures
// are logged, not surfaced: the import is already committed.
func (s *Service) archiveImport(ctx context.Context, eventID int64, summary string, result ImportResult) {
	if s.archive == nil {
		return
	}
	record := archiveRecord{
		ImportID:   result.ImportID,
		EventID:    eventID,
		Summary:    summary,
		Token:      result.Token,
		Delta:      result.Delta,
		Previous:   result.Previous,
		ArchivedAt: s.clock(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("archive encode failed", "event_id", eventID, "error", err)
		return
	}
	key := fmt.Sprintf("imports/%d/%s.json", eventID, result.Token)
	if _, err := s.archive.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		s.logger.Warn("archive write failed", "event_id", eventID, "key", key, "error", err)
	}
}

// ListArchivedImports returns the archive entries retained for an event.
func (s *Service) ListArchivedImports(ctx context.Context, eventID int64) ([]blob.Info, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.List(ctx, fmt.Sprintf("imports/%d/", eventID))
}

// CalculateFee prices one registration against the current event
// structure without mutating anything.
func (s *Service) CalculateFee(ctx context.Context, eventID, registrationID int64) (decimal.Decimal, error) {
	ctx, done := s.instrument(ctx, "calculate_fee")
	var retErr error
	defer func() { done(retErr) }()

	var owed decimal.Decimal
	retErr = s.store.View(ctx, func(v domain.TransactionView) error {
		event, ok := v.FindEvent(eventID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityEvent, ID: eventID}
		}
		reg, ok := v.FindRegistration(registrationID)
		if !ok || reg.EventID != eventID {
			return domain.NotFoundError{Entity: domain.EntityRegistration, ID: registrationID}
		}
		var err error
		owed, err = fee.Calculate(fee.Input{
			Event:        event,
			Parts:        v.ListParts(eventID),
			PartGroups:   v.ListPartGroups(eventID),
			Fees:         v.ListFees(eventID),
			Registration: reg,
			IsMember:     reg.IsMember,
		})
		return err
	})
	if retErr != nil {
		return decimal.Decimal{}, retErr
	}
	return owed, nil
}

// RecomputeFees reprices every registration of the event and persists
// changed owed amounts. It returns the number of updated registrations.
func (s *Service) RecomputeFees(ctx context.Context, eventID int64) (int, error) {
	ctx, done := s.instrument(ctx, "recompute_fees")
	var retErr error
	defer func() { done(retErr) }()

	updated := 0
	_, retErr = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		event, ok := tx.FindEvent(eventID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityEvent, ID: eventID}
		}
		parts := tx.ListParts(eventID)
		groups := tx.ListPartGroups(eventID)
		fees := tx.ListFees(eventID)
		for _, reg := range tx.ListRegistrations(eventID) {
			owed, err := fee.Calculate(fee.Input{
				Event:        event,
				Parts:        parts,
				PartGroups:   groups,
				Fees:         fees,
				Registration: reg,
				IsMember:     reg.IsMember,
			})
			if err != nil {
				return err
			}
			if owed.Equal(reg.AmountOwed) {
				continue
			}
			if _, err := tx.UpdateRegistration(reg.ID, func(current *domain.Registration) error {
				current.AmountOwed = owed
				return nil
			}); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if retErr != nil {
		return 0, retErr
	}
	s.logger.Info("fees recomputed", "event_id", eventID, "updated", updated)
	return updated, nil
}

// RenamePart changes a part's shortname and rewrites every fee condition
// referencing it, in one transaction. Conditions that do not mention the
// part keep their stored serialization untouched.
func (s *Service) RenamePart(ctx context.Context, eventID, partID int64, newShortname string) error {
	ctx, done := s.instrument(ctx, "rename_part")
	var retErr error
	defer func() { done(retErr) }()

	if newShortname == "" {
		retErr = domain.ValidationError{Field: "shortname", Reason: "must not be empty"}
		return retErr
	}
	_, retErr = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var oldName string
		found := false
		for _, part := range tx.ListParts(eventID) {
			if part.ID == partID {
				oldName = part.Shortname
				found = true
				continue
			}
			if part.Shortname == newShortname {
				return domain.ValidationError{Field: "shortname", Reason: fmt.Sprintf("%q is already in use", newShortname)}
			}
		}
		if !found {
			return domain.NotFoundError{Entity: domain.EntityPart, ID: partID}
		}
		if oldName == newShortname {
			return nil
		}
		fees := tx.ListFees(eventID)
		rewritten, err := fee.RewritePartShortname(fees, oldName, newShortname)
		if err != nil {
			return err
		}
		if _, err := tx.UpdatePart(partID, func(p *domain.EventPart) error {
			p.Shortname = newShortname
			return nil
		}); err != nil {
			return err
		}
		for i, f := range fees {
			if rewritten[i].Condition == f.Condition {
				continue
			}
			next := rewritten[i].Condition
			if _, err := tx.UpdateFee(f.ID, func(target *domain.EventFee) error {
				target.Condition = next
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if retErr == nil {
		s.logger.Info("part renamed", "event_id", eventID, "part_id", partID, "shortname", newShortname)
	}
	return retErr
}
