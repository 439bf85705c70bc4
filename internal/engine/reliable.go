package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/dmlguard/internal/connectors"
	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ReliableEngine — декоратор над Engine: rate limiter + circuit breaker на всех
// вызовах, ретраи только на чтениях. Записи не ретраим: insert/update/upsert
// не идемпотентны, повтор после таймаута может задвоить данные.
type ReliableEngine struct {
	next    Engine
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *Metrics
}

func NewReliableEngine(next Engine, metrics *Metrics) *ReliableEngine {
	e := &ReliableEngine{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(100), 20),
		metrics: metrics,
	}

	// Настройка предохранителя
	e.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dmlguard-engine",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if e.metrics == nil {
				return
			}
			v := 0.0
			if to == gobreaker.StateOpen {
				v = 1.0
			}
			e.metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
	})

	return e
}

// execute — общий путь через limiter и circuit breaker
func (e *ReliableEngine) execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	return e.cb.Execute(fn)
}

// executeWithRetry дополнительно ретраит с экспоненциальным бэкоффом.
// Движок может подсказать задержку через connectors.ThrottleError.
func (e *ReliableEngine) executeWithRetry(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return e.execute(ctx, func() (any, error) {
		var result any

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если движок вернул ThrottleError — уважаем его Retry-After
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			var callErr error
			result, callErr = fn(tCtx)
			return callErr
		})

		return result, retryErr
	})
}

func (e *ReliableEngine) Query(ctx context.Context, text string, trust domain.TrustLevel) ([]domain.Record, error) {
	res, err := e.executeWithRetry(ctx, func(ctx context.Context) (any, error) {
		return e.next.Query(ctx, text, trust)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Record), nil
}

func (e *ReliableEngine) QueryWithBindings(ctx context.Context, text string, bindings map[string]any, trust domain.TrustLevel) ([]domain.Record, error) {
	res, err := e.executeWithRetry(ctx, func(ctx context.Context) (any, error) {
		return e.next.QueryWithBindings(ctx, text, bindings, trust)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Record), nil
}

func (e *ReliableEngine) Insert(ctx context.Context, records []domain.Record, opts domain.BulkOptions, trust domain.TrustLevel) ([]domain.SaveOutcome, error) {
	res, err := e.execute(ctx, func() (any, error) {
		return e.next.Insert(ctx, records, opts, trust)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.SaveOutcome), nil
}

func (e *ReliableEngine) Update(ctx context.Context, records []domain.Record, opts domain.BulkOptions, trust domain.TrustLevel) ([]domain.SaveOutcome, error) {
	res, err := e.execute(ctx, func() (any, error) {
		return e.next.Update(ctx, records, opts, trust)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.SaveOutcome), nil
}

func (e *ReliableEngine) Upsert(ctx context.Context, records []domain.Record, keyField string, allOrNone bool, trust domain.TrustLevel) ([]domain.UpsertOutcome, error) {
	res, err := e.execute(ctx, func() (any, error) {
		return e.next.Upsert(ctx, records, keyField, allOrNone, trust)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.UpsertOutcome), nil
}

func (e *ReliableEngine) Delete(ctx context.Context, records []domain.Record, allOrNone bool, trust domain.TrustLevel) ([]domain.DeleteOutcome, error) {
	res, err := e.execute(ctx, func() (any, error) {
		return e.next.Delete(ctx, records, allOrNone, trust)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.DeleteOutcome), nil
}
