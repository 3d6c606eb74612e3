package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/spaceai-sentinel/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

// ThreatRepo — персистентность детекционного следа.
// Таблицы threat_events и response_actions пишутся только пачками (Bulk Insert),
// единичных вставок на горячем пути нет.
type ThreatRepo struct {
	db *sql.DB
}

func NewThreatRepo(connString string) (*ThreatRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &ThreatRepo{db: db}, nil
}

func (r *ThreatRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ThreatRepo) WriteEvents(ctx context.Context, events []domain.ThreatEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице threat_events
	numFields := 6
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6)

		vals = append(vals,
			e.ID, e.AgentID, e.Score, string(e.ThreatType), string(e.Action), e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO threat_events (id, agent_id, score, threat_type, action, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

func (r *ThreatRepo) WriteResults(ctx context.Context, results []domain.ResponseActionResult) error {
	if len(results) == 0 {
		return nil
	}

	numFields := 5
	placeholderStr := ""
	vals := make([]interface{}, 0, len(results)*numFields)

	for i, res := range results {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5)

		var errText sql.NullString
		if res.Error != "" {
			errText = sql.NullString{String: res.Error, Valid: true}
		}

		vals = append(vals,
			res.AgentID, string(res.Action), res.Success, errText, res.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO response_actions (agent_id, action, success, error, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// SaveQuarantine фиксирует живую запись карантина (upsert по agent_id).
// Запись переживает рестарт sentinel и нужна для гидратации респондера.
func (r *ThreatRepo) SaveQuarantine(ctx context.Context, status domain.QuarantineStatus) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quarantines (agent_id, quarantined_at, reason)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (agent_id) DO UPDATE SET quarantined_at = $2, reason = $3`,
		status.AgentID, status.QuarantinedAt, status.Reason)
	return err
}

// DeleteQuarantine снимает запись при явном Release
func (r *ThreatRepo) DeleteQuarantine(ctx context.Context, agentID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM quarantines WHERE agent_id = $1", agentID)
	return err
}

// ActiveQuarantines возвращает все живые записи для восстановления
// состояния респондера и прогрева Redis на старте
func (r *ThreatRepo) ActiveQuarantines(ctx context.Context) ([]domain.QuarantineStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT agent_id, quarantined_at, reason FROM quarantines")
	if err != nil {
		return nil, fmt.Errorf("failed to load quarantines: %w", err)
	}
	defer rows.Close()

	var out []domain.QuarantineStatus
	for rows.Next() {
		var s domain.QuarantineStatus
		if err := rows.Scan(&s.AgentID, &s.QuarantinedAt, &s.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine row: %w", err)
		}
		s.Restrictions = domain.QuarantineRestrictions
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetUser нужен консольному логину (операторы хранятся рядом со следом)
func (r *ThreatRepo) GetUser(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = $1", username)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	u.Scopes = map[string]bool{"sentinel.read": true, "sentinel.respond": true}
	return &u, nil
}
