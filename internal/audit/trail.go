package audit

/*
Файл trail.go реализует Decision Trail — неблокирующий сборщик решений
защитного слоя с пакетной записью в хранилище.

- Non-blocking Logging: события уходят из hot path через буферизованный канал,
  задержки БД не влияют на время ответа операций.
- Batching: накопление в памяти и Bulk Insert по таймеру или при достижении
  лимита пачки.
- Drain Pattern & Graceful Shutdown: при остановке канал закрывается, воркер
  вычитывает остатки и делает финальный flush — события не теряются.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []GuardEvent) error
}

// Auditor — то, что видит защитный слой. Log никогда не блокирует.
type Auditor interface {
	Log(event GuardEvent)
}

const flushBatchSize = 100

type Trail struct {
	ch     chan GuardEvent
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	flushInterval time.Duration

	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Log после остановки
	isClosed int32
}

func NewTrail(repo StorageInterface, logger *zap.Logger, bufferSize int, flushInterval time.Duration) *Trail {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Trail{
		ch:            make(chan GuardEvent, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "trail")),
		flushInterval: flushInterval,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("trail stopped gracefully")
}

func (t *Trail) Log(event GuardEvent) {
	// Убеждаемся, что таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("guard event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполнении буфера событие уходит хотя бы в лог
	select {
	case t.ch <- event:
	default:
		t.logger.Error("trail_buffer_overflow",
			zap.String("principal", event.Principal),
			zap.String("trace_id", event.TraceID),
		)
	}
}

// Len — текущая заполненность буфера (для метрики saturation)
func (t *Trail) Len() int {
	return len(t.ch)
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]GuardEvent, 0, flushBatchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к моменту финального flush может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("trail flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный сброс и выход
				flush()
				t.logger.Info("trail worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
