package audit

/*
Файл trail.go реализует Threat Trail — асинхронный движок персистентности
детекционного следа (события скоринга и действия респондера).

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал на входе. Задержки записи в БД
  не влияют на время прохода сэмпла по конвейеру.
- Batching & Efficiency: накопление записей в памяти и пакетная запись
  (Bulk Insert) в PostgreSQL по таймеру или при достижении лимита.
- Drain Pattern & Graceful Shutdown: при остановке буфер вычитывается до конца
  (Final Flush), потерь при перезагрузке нет.
- Reliability: сбой БД изолирован в воркере; завершающие операции идут
  с Background-контекстом.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняется след
type StorageInterface interface {
	WriteEvents(ctx context.Context, events []domain.ThreatEvent) error
	WriteResults(ctx context.Context, results []domain.ResponseActionResult) error
}

// record — одна запись очереди: либо событие скоринга, либо действие респондера
type record struct {
	event  *domain.ThreatEvent
	result *domain.ResponseActionResult
}

type Trail struct {
	ch            chan record
	repo          StorageInterface
	logger        *zap.Logger
	wg            sync.WaitGroup
	batchSize     int
	flushInterval time.Duration

	// RW-замок сериализует enqueue относительно close(ch): писатель,
	// прошедший проверку closed, гарантированно успевает отправить
	mu     sync.RWMutex
	closed bool

	// Текущая заполненность буфера для гейджа backpressure
	fill func(n float64)
}

func NewTrail(repo StorageInterface, bufferSize, batchSize int, flushInterval time.Duration, logger *zap.Logger) *Trail {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Trail{
		ch:            make(chan record, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "trail")),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		fill:          func(float64) {},
	}
}

// SetFillGauge подключает гейдж заполненности буфера (Prometheus)
func (t *Trail) SetFillGauge(set func(n float64)) {
	if set != nil {
		t.fill = set
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход в канал и ждет, пока воркер всё допишет
func (t *Trail) Stop() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.logger.Info("stopping trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("trail stopped gracefully")
}

// AddThreatEvent реализует engine.EventConsumer
func (t *Trail) AddThreatEvent(e domain.ThreatEvent) {
	t.enqueue(record{event: &e})
}

// LogResult ставит действие респондера в очередь на персистентность
func (t *Trail) LogResult(r domain.ResponseActionResult) {
	t.enqueue(record{result: &r})
}

func (t *Trail) enqueue(rec record) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Warn("trail record dropped: trail is stopping")
		return
	}

	// Стратегия Load Shedding: при переполнении пишем в обычный лог,
	// чтобы не потерять данные в критической ситуации
	select {
	case t.ch <- rec:
		t.fill(float64(len(t.ch)))
	default:
		t.logger.Error("trail_buffer_overflow")
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	events := make([]domain.ThreatEvent, 0, t.batchSize)
	results := make([]domain.ResponseActionResult, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		// Background: основной контекст к этому моменту может быть закрыт
		if len(events) > 0 {
			if err := t.repo.WriteEvents(context.Background(), events); err != nil {
				t.logger.Error("trail event flush failed", zap.Error(err))
			}
			events = events[:0]
		}
		if len(results) > 0 {
			if err := t.repo.WriteResults(context.Background(), results); err != nil {
				t.logger.Error("trail result flush failed", zap.Error(err))
			}
			results = results[:0]
		}
		t.fill(float64(len(t.ch)))
	}

	for {
		select {
		case rec, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): воркер уже дочитал остатки —
				// финальный сброс и выход
				flush()
				t.logger.Info("trail worker finished")
				return
			}
			if rec.event != nil {
				events = append(events, *rec.event)
			}
			if rec.result != nil {
				results = append(results, *rec.result)
			}
			if len(events)+len(results) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
