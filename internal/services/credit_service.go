package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"creditledger/internal/amqp"
	"creditledger/internal/cache"
	"creditledger/internal/core"
	"creditledger/internal/ledger"
	applog "creditledger/internal/log"
)

// EventPublisher is the outbound side of the AMQP client.
type EventPublisher interface {
	PublishCreditEvent(ctx context.Context, event *amqp.CreditEvent) error
}

type CreditServiceOptions struct {
	MonthKey core.MonthKey
	// SummaryCacheTTL of zero disables summary caching.
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int
	Publisher        EventPublisher
}

// CreditService orchestrates the ledger store, the month summary cache and
// change events. Writes succeed or fail on the store alone; publishing is best effort.
type CreditService struct {
	store     ledger.Store
	publisher EventPublisher
	monthKey  core.MonthKey

	summaries *cache.LRUCache[core.MonthSummary]
	group     singleflight.Group
}

func NewCreditService(store ledger.Store, opts CreditServiceOptions) *CreditService {
	key := opts.MonthKey
	if key == "" {
		key = core.MonthByDate
	}
	s := &CreditService{
		store:     store,
		publisher: opts.Publisher,
		monthKey:  key,
	}
	if opts.SummaryCacheTTL > 0 {
		size := opts.SummaryCacheSize
		if size <= 0 {
			size = 120
		}
		s.summaries = cache.NewLRUCache[core.MonthSummary](size, opts.SummaryCacheTTL)
	}
	return s
}

// SummaryCache exposes the cache for periodic cleanup; nil when caching is off.
func (s *CreditService) SummaryCache() cache.Cleaner {
	if s.summaries == nil {
		return nil
	}
	return s.summaries
}

func (s *CreditService) MonthKey() core.MonthKey { return s.monthKey }

func (s *CreditService) month(year, month int) core.MonthQuery {
	return core.MonthQuery{Year: year, Month: month, Key: s.monthKey}
}

func (s *CreditService) List(ctx context.Context) ([]core.Credit, error) {
	return s.store.List(ctx)
}

func (s *CreditService) ListByMonth(ctx context.Context, year, month int) ([]core.Credit, error) {
	return s.store.ListByMonth(ctx, s.month(year, month))
}

func (s *CreditService) Get(ctx context.Context, id int64) (core.Credit, error) {
	return s.store.Get(ctx, id)
}

func (s *CreditService) Create(ctx context.Context, in core.CreditInput) (core.Credit, error) {
	c, err := s.store.Create(ctx, in)
	if err != nil {
		return core.Credit{}, fmt.Errorf("create credit: %w", err)
	}
	s.invalidate(c)
	s.publish(ctx, amqp.NewCreditEvent(amqp.CreditCreated, c.ID, &c))
	return c, nil
}

func (s *CreditService) Update(ctx context.Context, id int64, p core.CreditPatch) (core.Credit, error) {
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Credit{}, err
	}
	c, err := s.store.Update(ctx, id, p)
	if err != nil {
		return core.Credit{}, err
	}
	// An update may move the credit to another month: both lose their summary.
	s.invalidate(before)
	s.invalidate(c)
	s.publish(ctx, amqp.NewCreditEvent(amqp.CreditUpdated, c.ID, &c))
	return c, nil
}

// Delete reports whether a credit was removed. Deleting a missing id is not an error.
func (s *CreditService) Delete(ctx context.Context, id int64) (bool, error) {
	before, getErr := s.store.Get(ctx, id)
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete credit: %w", err)
	}
	if !ok {
		return false, nil
	}
	if getErr == nil {
		s.invalidate(before)
	} else {
		s.purgeSummaries()
	}
	s.publish(ctx, amqp.NewCreditEvent(amqp.CreditDeleted, id, nil))
	return true, nil
}

// Summary aggregates one month. Concurrent misses for the same month share one store query.
func (s *CreditService) Summary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	q := s.month(year, month)
	if err := q.Validate(); err != nil {
		return core.MonthSummary{}, err
	}
	if s.summaries == nil {
		return s.computeSummary(ctx, q)
	}

	key := q.CacheKey()
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}
	// Callers only share a query started under the same generation, so a
	// request arriving after a write never receives a result read before it.
	gen := s.summaries.Generation()
	v, err, _ := s.group.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		sum, err := s.computeSummary(ctx, q)
		if err != nil {
			return core.MonthSummary{}, err
		}
		s.summaries.SetIfCurrent(key, sum, gen)
		return sum, nil
	})
	if err != nil {
		return core.MonthSummary{}, err
	}
	return v.(core.MonthSummary), nil
}

func (s *CreditService) computeSummary(ctx context.Context, q core.MonthQuery) (core.MonthSummary, error) {
	credits, err := s.store.ListByMonth(ctx, q)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return core.Summarize(q, credits), nil
}

// Compare reconciles the month total against what the store reports.
func (s *CreditService) Compare(ctx context.Context, year, month int, storeTotal core.Money) (core.Comparison, error) {
	if storeTotal.Cents < 0 {
		return core.Comparison{}, fmt.Errorf("%w: store total must not be negative", core.ErrInvalidArgument)
	}
	sum, err := s.Summary(ctx, year, month)
	if err != nil {
		return core.Comparison{}, err
	}
	return core.Compare(sum, storeTotal), nil
}

func (s *CreditService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// invalidate drops the cached summaries c can appear in, under either month key.
func (s *CreditService) invalidate(c core.Credit) {
	if s.summaries == nil {
		return
	}
	var keys []string
	if q, ok := core.MonthOf(c.Date, core.MonthByDate); ok {
		keys = append(keys, q.CacheKey())
	}
	if !c.CreatedAt.IsZero() {
		t := c.CreatedAt.UTC()
		q := core.MonthQuery{Year: t.Year(), Month: int(t.Month()), Key: core.MonthByCreatedAt}
		keys = append(keys, q.CacheKey())
	}
	s.summaries.Invalidate(keys...)
}

func (s *CreditService) purgeSummaries() {
	if s.summaries != nil {
		s.summaries.Purge()
	}
}

func (s *CreditService) publish(ctx context.Context, event *amqp.CreditEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCreditEvent(ctx, event); err != nil {
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = slog.LevelWarn
		}
		applog.FromContext(ctx).WithComponent(applog.ComponentCredit).Log(ctx, level, "Failed to publish credit event",
			"type", event.Type, applog.FieldCreditID, event.ID, applog.FieldError, err)
	}
}

func (s *CreditService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close credit store: %w", err)
		}
	}
	return nil
}
