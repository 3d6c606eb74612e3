package engine

import (
	"sync"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"go.uber.org/zap"
)

// EventConsumer — получатель событий скоринга (предиктор, аудит-трейл)
type EventConsumer interface {
	AddThreatEvent(e domain.ThreatEvent)
}

// EventFanout развязывает горячий путь скорера и медленных потребителей.
// Publish не блокирует никогда: при переполнении буфера события сбрасываются
// (Load Shedding) — предиктор eventually consistent по контракту, потеря
// события смещает прогноз, но не ломает конвейер.
type EventFanout struct {
	ch        chan domain.ThreatEvent
	consumers []EventConsumer
	logger    *zap.Logger
	wg        sync.WaitGroup

	// RW-замок сериализует Publish относительно close(ch): писатель,
	// прошедший проверку closed, гарантированно успевает отправить
	mu     sync.RWMutex
	closed bool
}

func NewEventFanout(bufferSize int, logger *zap.Logger, consumers ...EventConsumer) *EventFanout {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &EventFanout{
		ch:        make(chan domain.ThreatEvent, bufferSize),
		consumers: consumers,
		logger:    logger.With(zap.String("mod", "fanout")),
	}
}

func (f *EventFanout) Start() {
	f.wg.Add(1)
	go f.worker()
}

// Stop запирает вход и ждет, пока воркер дочитает буфер (Drain Pattern)
func (f *EventFanout) Stop() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	close(f.ch)
	f.wg.Wait()
	f.logger.Info("event fanout stopped gracefully")
}

// Publish реализует scorer.EventSink
func (f *EventFanout) Publish(e domain.ThreatEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		f.logger.Warn("threat event dropped: fanout is stopping", zap.String("id", e.ID))
		return
	}

	select {
	case f.ch <- e:
	default:
		f.logger.Error("event_buffer_overflow",
			zap.String("agent_id", e.AgentID),
			zap.String("event_id", e.ID),
		)
	}
}

func (f *EventFanout) worker() {
	defer f.wg.Done()

	for e := range f.ch {
		for _, c := range f.consumers {
			c.AddThreatEvent(e)
		}
	}
	// Канал закрыт в Stop() — буфер дочитан, выходим
	f.logger.Info("event fanout worker finished")
}
