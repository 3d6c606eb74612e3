package response

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/spaceai-sentinel/internal/domain"
	"github.com/xela07ax/spaceai-sentinel/internal/ringlog"
	"go.uber.org/zap"
)

const (
	DefaultEscalationThreshold = 0.8
	DefaultHistoryCap          = 10_000
	incidentCap                = 1_000
)

const errAlreadyQuarantined = "Agent already quarantined"

// Executor — внешний коллаборатор, который физически завершает агента.
// Вызов fire-and-forget: ядро фиксирует только свое решение, подтверждений
// и ретраев внешнего эффекта здесь нет — этот разрыв закрывает вызывающая сторона.
type Executor interface {
	Terminate(ctx context.Context, agentID string)
}

// Notifier доставляет эскалацию человеку (pager/webhook)
type Notifier interface {
	Escalate(ctx context.Context, incident domain.Incident)
}

// SignalPublisher транслирует смену состояния агента в enforcement-плоскость
// (Redis sets + pub/sub; см. infra/rediskeys). Ошибки публикации не валят
// решение респондера: локальная запись — источник истины.
type SignalPublisher interface {
	QuarantineOn(ctx context.Context, agentID string)
	QuarantineOff(ctx context.Context, agentID string)
	Kill(ctx context.Context, agentID string)
}

// QuarantineStore персистит живые записи карантина (Postgres). Записи
// переживают рестарт: на старте респондер гидратируется через Restore,
// а Redis греется теми же данными (см. Warmup у сигналов).
type QuarantineStore interface {
	SaveQuarantine(ctx context.Context, status domain.QuarantineStatus) error
	DeleteQuarantine(ctx context.Context, agentID string) error
}

// Responder применяет политику действий к ThreatScore и ведет state machine
// агента: Normal -> Monitored -> Quarantined -> Terminated.
type Responder struct {
	mu          sync.RWMutex
	quarantined map[string]domain.QuarantineStatus
	monitored   map[string]time.Time
	terminated  map[string]time.Time

	history   *ringlog.Log[domain.ResponseActionResult]
	incidents *ringlog.Log[domain.Incident]

	escalationThreshold float64
	executor            Executor
	notifier            Notifier
	signals             SignalPublisher
	store               QuarantineStore
	resultSink          func(domain.ResponseActionResult) // Аудит-трейл, не блокирует
	logger              *zap.Logger
}

type Option func(*Responder)

func WithExecutor(e Executor) Option        { return func(r *Responder) { r.executor = e } }
func WithNotifier(n Notifier) Option        { return func(r *Responder) { r.notifier = n } }
func WithSignals(s SignalPublisher) Option  { return func(r *Responder) { r.signals = s } }
func WithHistoryCap(capacity int) Option {
	return func(r *Responder) { r.history = ringlog.New[domain.ResponseActionResult](capacity) }
}

// WithResultSink подключает внешнего потребителя истории (персистентный след)
func WithResultSink(sink func(domain.ResponseActionResult)) Option {
	return func(r *Responder) { r.resultSink = sink }
}

// WithStore подключает персистентное хранилище живых карантинов
func WithStore(store QuarantineStore) Option {
	return func(r *Responder) { r.store = store }
}

func New(escalationThreshold float64, logger *zap.Logger, opts ...Option) *Responder {
	if escalationThreshold <= 0 {
		escalationThreshold = DefaultEscalationThreshold
	}
	r := &Responder{
		quarantined:         make(map[string]domain.QuarantineStatus),
		monitored:           make(map[string]time.Time),
		terminated:          make(map[string]time.Time),
		history:             ringlog.New[domain.ResponseActionResult](DefaultHistoryCap),
		incidents:           ringlog.New[domain.Incident](incidentCap),
		escalationThreshold: escalationThreshold,
		logger:              logger.Named("responder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RespondToThreat применяет рекомендованное действие. Каждый вызов оставляет
// ровно одну запись в истории, включая неуспешные.
func (r *Responder) RespondToThreat(ctx context.Context, agentID string, score domain.ThreatScore) domain.ResponseActionResult {
	var result domain.ResponseActionResult

	switch score.RecommendedAction {
	case domain.ActionMonitor:
		result = r.monitor(agentID)
	case domain.ActionEscalate:
		// Двухшаговое решение: рекомендация отдельно, порог отдельно.
		// Порог конфигурируется независимо от маппинга скор->действие.
		if score.Score >= r.escalationThreshold {
			result = r.escalate(ctx, agentID, score)
		} else {
			result = r.monitor(agentID)
		}
	case domain.ActionQuarantine:
		result = r.QuarantineAgent(ctx, agentID, quarantineReason(score))
		return result // QuarantineAgent сам пишет историю
	case domain.ActionKill:
		result = r.kill(ctx, agentID)
	default:
		result = r.monitor(agentID)
	}

	r.record(result)
	return result
}

// QuarantineAgent создает ровно одну живую запись карантина на агента.
// Повторный запрос — идемпотентный отказ без смены состояния.
func (r *Responder) QuarantineAgent(ctx context.Context, agentID, reason string) domain.ResponseActionResult {
	result := domain.ResponseActionResult{
		Action:    domain.ActionQuarantine,
		AgentID:   agentID,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	if _, exists := r.quarantined[agentID]; exists {
		r.mu.Unlock()
		result.Success = false
		result.Error = errAlreadyQuarantined
		r.record(result)
		return result
	}

	status := domain.QuarantineStatus{
		AgentID:       agentID,
		QuarantinedAt: result.Timestamp,
		Reason:        reason,
		Restrictions:  domain.QuarantineRestrictions,
	}
	r.quarantined[agentID] = status
	r.mu.Unlock()

	r.logger.Warn("agent quarantined",
		zap.String("agent_id", agentID),
		zap.String("reason", reason),
	)

	if r.signals != nil {
		r.signals.QuarantineOn(ctx, agentID)
	}
	if r.store != nil {
		// Сбой персистентности не отменяет решение: локальная запись первична
		if err := r.store.SaveQuarantine(ctx, status); err != nil {
			r.logger.Error("failed to persist quarantine record",
				zap.String("agent_id", agentID), zap.Error(err))
		}
	}

	result.Success = true
	r.record(result)
	return result
}

// Restore гидратирует карантины из персистентного хранилища при старте.
// Это не новые решения: сигналы, история и след не трогаются.
func (r *Responder) Restore(statuses []domain.QuarantineStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range statuses {
		if len(s.Restrictions) == 0 {
			s.Restrictions = domain.QuarantineRestrictions
		}
		r.quarantined[s.AgentID] = s
	}

	if len(statuses) > 0 {
		r.logger.Info("quarantine state restored", zap.Int("count", len(statuses)))
	}
}

// ReleaseQuarantine снимает карантин явно. false — записи не было.
func (r *Responder) ReleaseQuarantine(ctx context.Context, agentID string) bool {
	r.mu.Lock()
	_, exists := r.quarantined[agentID]
	if exists {
		delete(r.quarantined, agentID)
	}
	r.mu.Unlock()

	if !exists {
		return false
	}

	r.logger.Info("quarantine released", zap.String("agent_id", agentID))
	if r.signals != nil {
		r.signals.QuarantineOff(ctx, agentID)
	}
	if r.store != nil {
		if err := r.store.DeleteQuarantine(ctx, agentID); err != nil {
			r.logger.Error("failed to delete quarantine record",
				zap.String("agent_id", agentID), zap.Error(err))
		}
	}
	return true
}

func (r *Responder) IsQuarantined(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.quarantined[agentID]
	return ok
}

func (r *Responder) GetQuarantineStatus(agentID string) (domain.QuarantineStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.quarantined[agentID]
	return s, ok
}

func (r *Responder) ListQuarantined() []domain.QuarantineStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QuarantineStatus, 0, len(r.quarantined))
	for _, s := range r.quarantined {
		out = append(out, s)
	}
	return out
}

// History — ограниченная история действий, вся или по агенту
func (r *Responder) History(agentID string) []domain.ResponseActionResult {
	if agentID == "" {
		return r.history.Snapshot()
	}
	return r.history.Filter(func(res domain.ResponseActionResult) bool { return res.AgentID == agentID })
}

// Incidents — записи реальных эскалаций для HITL-очереди
func (r *Responder) Incidents() []domain.Incident {
	return r.incidents.Snapshot()
}

// StateOf — текущее состояние агента в машине респондера
func (r *Responder) StateOf(agentID string) domain.AgentState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.terminated[agentID]; ok {
		return domain.StateTerminated
	}
	if _, ok := r.quarantined[agentID]; ok {
		return domain.StateQuarantined
	}
	if _, ok := r.monitored[agentID]; ok {
		return domain.StateMonitored
	}
	return domain.StateNormal
}

// record кладет результат в ограниченную историю и отдает копию во внешний след
func (r *Responder) record(result domain.ResponseActionResult) {
	r.history.Append(result)
	if r.resultSink != nil {
		r.resultSink(result)
	}
}

func (r *Responder) monitor(agentID string) domain.ResponseActionResult {
	r.mu.Lock()
	r.monitored[agentID] = time.Now()
	r.mu.Unlock()

	return domain.ResponseActionResult{
		Success:   true,
		Action:    domain.ActionMonitor,
		AgentID:   agentID,
		Timestamp: time.Now(),
	}
}

func (r *Responder) escalate(ctx context.Context, agentID string, score domain.ThreatScore) domain.ResponseActionResult {
	incident := domain.Incident{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Score:     score.Score,
		Threat:    score.ThreatType,
		CreatedAt: time.Now(),
	}
	r.incidents.Append(incident)

	r.logger.Error("threat escalated to operator",
		zap.String("agent_id", agentID),
		zap.String("incident_id", incident.ID),
		zap.Float64("score", score.Score),
		zap.String("threat_type", string(score.ThreatType)),
	)

	if r.notifier != nil {
		// Доставка — забота нотификатора (ретраи, CB). Решение уже принято.
		go r.notifier.Escalate(context.WithoutCancel(ctx), incident)
	}

	return domain.ResponseActionResult{
		Success:   true,
		Action:    domain.ActionEscalate,
		AgentID:   agentID,
		Timestamp: incident.CreatedAt,
	}
}

// kill переводит агента в терминальное состояние. Само завершение делегируется
// внешнему исполнителю: с точки зрения ядра действие успешно в момент отправки.
func (r *Responder) kill(ctx context.Context, agentID string) domain.ResponseActionResult {
	r.mu.Lock()
	r.terminated[agentID] = time.Now()
	r.mu.Unlock()

	r.logger.Error("agent termination ordered", zap.String("agent_id", agentID))

	detached := context.WithoutCancel(ctx)
	if r.signals != nil {
		r.signals.Kill(detached, agentID)
	}
	if r.executor != nil {
		go r.executor.Terminate(detached, agentID)
	}

	return domain.ResponseActionResult{
		Success:   true,
		Action:    domain.ActionKill,
		AgentID:   agentID,
		Timestamp: time.Now(),
	}
}

func quarantineReason(score domain.ThreatScore) string {
	return fmt.Sprintf("threat score %.2f (%s)", score.Score, score.ThreatType)
}
