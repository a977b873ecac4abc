package completion

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// SERVICE - Completion actions: the only writers of day-logs
// =============================================================================

// Invalidator is notified after every successful mutation so cached
// pending-order views are refetched.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

func (f InvalidatorFunc) Invalidate() { f() }

// Service coordinates the day-log, the tracking index and the cache.
type Service struct {
	Logs    LogStore
	Tracker *Tracker
	Cache   Invalidator
	Clock   Clock
	Log     *zap.Logger
}

// NewService wires a service. cache may be nil.
func NewService(logs LogStore, tracker *Tracker, cache Invalidator, clock Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Logs: logs, Tracker: tracker, Cache: cache, Clock: clock, Log: log.Named("completion")}
}

// Complete validates input, appends it to today's day-log and marks the
// pair completed. The record is durable once Complete returns nil.
func (s *Service) Complete(ctx context.Context, input map[string]any) (Record, error) {
	rec, err := NewRecord(input, s.Clock.Now())
	if err != nil {
		return Record{}, err
	}

	if err := s.Logs.Append(ctx, rec); err != nil {
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			err = &PersistenceError{Op: "append", Path: rec.ProcessingDate, Err: err}
		}
		return Record{}, err
	}

	if s.Tracker != nil && !s.Tracker.MarkCompleted(ctx, rec.ClientName, rec.ProductCode) {
		s.Log.Warn("record saved but not tracked", zap.String("id", rec.ID))
	}
	s.invalidate()

	s.Log.Info("order completed",
		zap.String("id", rec.ID),
		zap.String("client", rec.ClientName),
		zap.String("product", rec.ProductCode),
		zap.String("completed_by", rec.CompletedBy))
	return rec, nil
}

// Delete removes a record from the day-log of date (today when empty) and
// releases its tracking key if nothing else backs it.
func (s *Service) Delete(ctx context.Context, id, date string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, &ValidationError{Fields: []string{"order_id"}, Message: "order id is required"}
	}
	day, err := s.resolveDay(date)
	if err != nil {
		return Record{}, err
	}

	rec, err := s.Logs.Delete(ctx, day, id)
	if err != nil {
		return Record{}, err
	}

	if s.Tracker != nil {
		released, err := s.Tracker.Release(ctx, rec.ClientName, rec.ProductCode)
		switch {
		case err != nil:
			s.Log.Error("tracking key not released", zap.String("id", rec.ID), zap.Error(err))
		case !released:
			s.Log.Debug("tracking key retained", zap.String("id", rec.ID))
		}
	}
	s.invalidate()

	s.Log.Info("completion deleted", zap.String("id", rec.ID), zap.Stringer("day", day))
	return rec, nil
}

// Day loads the records of date (today when empty).
func (s *Service) Day(ctx context.Context, date string) (Day, []Record, error) {
	day, err := s.resolveDay(date)
	if err != nil {
		return Day{}, nil, err
	}
	recs, err := s.Logs.LoadDay(ctx, day)
	if err != nil {
		return day, nil, err
	}
	return day, recs, nil
}

// DateEntry is one row of the available-dates listing.
type DateEntry struct {
	Date          string `json:"date"`
	FormattedDate string `json:"formatted_date"`
}

// AvailableDates lists days that have a day-log, newest first.
func (s *Service) AvailableDates(ctx context.Context) ([]DateEntry, error) {
	days, err := s.Logs.Dates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DateEntry, 0, len(days))
	for _, d := range days {
		out = append(out, DateEntry{Date: d.String(), FormattedDate: d.Display()})
	}
	return out, nil
}

func (s *Service) resolveDay(date string) (Day, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return DayOf(s.Clock.Now()), nil
	}
	day, err := ParseDay(date)
	if err != nil {
		return Day{}, &ValidationError{Fields: []string{"date"}, Message: "date must be YYYY-MM-DD"}
	}
	return day, nil
}

func (s *Service) invalidate() {
	if s.Cache != nil {
		s.Cache.Invalidate()
	}
}
