package storage

// memory.go — memoria persistente del agente en SQLite.
//
// Tablas:
//   merchant_memory     — un registro por merchant: tags + contadores
//   decision_history    — historial append-only de decisiones
//   performance_metrics — series puntuales (profit, balance) por merchant
//
// Los registros de merchant_memory se crean lazy y nunca se borran;
// el historial y las métricas sí se podan por antigüedad.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/somnialabs/merchantd/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS merchant_memory (
    merchant_key         TEXT PRIMARY KEY,
    strategy             TEXT NOT NULL DEFAULT 'balanced',
    personality          TEXT NOT NULL DEFAULT 'neutral',
    memory               TEXT NOT NULL DEFAULT '{}',
    last_action          TEXT NOT NULL DEFAULT '',
    last_action_time     DATETIME,
    total_decisions      INTEGER NOT NULL DEFAULT 0,
    successful_decisions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS decision_history (
    id           TEXT PRIMARY KEY,
    merchant_key TEXT NOT NULL,
    timestamp    DATETIME NOT NULL,
    action       TEXT NOT NULL,
    details      TEXT NOT NULL DEFAULT '{}',
    reasoning    TEXT NOT NULL DEFAULT '',
    success      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS performance_metrics (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    merchant_key TEXT NOT NULL,
    metric       TEXT NOT NULL,
    value        REAL NOT NULL DEFAULT 0,
    timestamp    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_merchant ON decision_history(merchant_key, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_metrics_merchant ON performance_metrics(merchant_key, timestamp DESC);
`

// Store implementa ports.Memory sobre SQLite (pure Go, sin CGo).
type Store struct {
	db *sql.DB
}

// NewStore abre (o crea) la base de datos en la ruta dada y aplica el
// schema.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewStore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get devuelve el registro del merchant, creándolo con defaults si no
// existe. INSERT OR IGNORE hace la creación idempotente: una segunda
// llamada nunca resetea contadores.
func (s *Store) Get(ctx context.Context, key string) (domain.MerchantMemory, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO merchant_memory (merchant_key) VALUES (?)`, key,
	); err != nil {
		return domain.MerchantMemory{}, fmt.Errorf("storage.Get: ensure %q: %w", key, err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT strategy, personality, memory, last_action, last_action_time,
		       total_decisions, successful_decisions
		FROM merchant_memory WHERE merchant_key = ?`, key)

	mem := domain.MerchantMemory{Key: key}
	var blob string
	var lastTime sql.NullTime
	if err := row.Scan(
		&mem.Strategy, &mem.Personality, &blob, &mem.LastAction,
		&lastTime, &mem.TotalDecisions, &mem.SuccessfulDecisions,
	); err != nil {
		return domain.MerchantMemory{}, fmt.Errorf("storage.Get: scan %q: %w", key, err)
	}
	if lastTime.Valid {
		mem.LastActionTime = lastTime.Time
	}

	mem.Memory = map[string]any{}
	if blob != "" {
		// Un blob corrupto no invalida el registro: se parte de memoria vacía.
		json.Unmarshal([]byte(blob), &mem.Memory)
	}
	return mem, nil
}

// Update actualiza un campo del registro. "last_decision" tiene
// tratamiento especial: registra la decisión en el historial, actualiza
// last_action/last_action_time e incrementa total_decisions.
func (s *Store) Update(ctx context.Context, key, field string, value any) error {
	if field == "last_decision" {
		d, ok := value.(domain.Decision)
		if !ok {
			return fmt.Errorf("storage.Update: last_decision expects a decision, got %T", value)
		}
		return s.recordDecision(ctx, key, d, true, false)
	}

	var column string
	switch field {
	case "strategy":
		column = "strategy"
	case "personality":
		column = "personality"
	case "memory":
		column = "memory"
	default:
		return fmt.Errorf("storage.Update: unknown field %q", field)
	}

	stored := value
	if column == "memory" {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("storage.Update: marshal memory: %w", err)
		}
		stored = string(raw)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO merchant_memory (merchant_key) VALUES (?)`, key,
	); err != nil {
		return fmt.Errorf("storage.Update: ensure %q: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE merchant_memory SET %s = ? WHERE merchant_key = ?`, column),
		stored, key,
	); err != nil {
		return fmt.Errorf("storage.Update: set %s on %q: %w", field, key, err)
	}
	return nil
}

// RecordDecision añade una fila al historial e incrementa los contadores
// en la misma transacción.
func (s *Store) RecordDecision(ctx context.Context, key string, d domain.Decision, success bool) error {
	return s.recordDecision(ctx, key, d, success, true)
}

func (s *Store) recordDecision(ctx context.Context, key string, d domain.Decision, success, countSuccess bool) error {
	details, err := json.Marshal(d.Details)
	if err != nil {
		return fmt.Errorf("storage.RecordDecision: marshal details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordDecision: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	successInt := 0
	if success {
		successInt = 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_history (id, merchant_key, timestamp, action, details, reasoning, success)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), key, now, string(d.Action), string(details), d.Reasoning, successInt,
	); err != nil {
		return fmt.Errorf("storage.RecordDecision: insert history: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO merchant_memory (merchant_key) VALUES (?)`, key,
	); err != nil {
		return fmt.Errorf("storage.RecordDecision: ensure %q: %w", key, err)
	}

	successDelta := 0
	if success && countSuccess {
		successDelta = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE merchant_memory
		SET last_action = ?, last_action_time = ?,
		    total_decisions = total_decisions + 1,
		    successful_decisions = successful_decisions + ?
		WHERE merchant_key = ?`,
		string(d.Action), now, successDelta, key,
	); err != nil {
		return fmt.Errorf("storage.RecordDecision: update counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordDecision: commit: %w", err)
	}
	return nil
}

// History devuelve el historial del merchant, la decisión más reciente
// primero.
func (s *Store) History(ctx context.Context, key string, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action, details, reasoning, success
		FROM decision_history
		WHERE merchant_key = ?
		ORDER BY timestamp DESC
		LIMIT ?`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.History: query %q: %w", key, err)
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var action, details string
		var success int
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &action, &details, &rec.Reasoning, &success); err != nil {
			return nil, fmt.Errorf("storage.History: scan row: %w", err)
		}
		rec.Action = domain.Action(action)
		rec.Success = success == 1
		json.Unmarshal([]byte(details), &rec.Details)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordMetric guarda una métrica puntual del merchant.
func (s *Store) RecordMetric(ctx context.Context, key, metric string, value float64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO performance_metrics (merchant_key, metric, value, timestamp) VALUES (?, ?, ?, ?)`,
		key, metric, value, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storage.RecordMetric: insert %s for %q: %w", metric, key, err)
	}
	return nil
}

// MetricPoint es un punto de una serie de performance_metrics.
type MetricPoint struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics devuelve las métricas del merchant, la más reciente primero.
func (s *Store) Metrics(ctx context.Context, key string, limit int) ([]MetricPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric, value, timestamp
		FROM performance_metrics
		WHERE merchant_key = ?
		ORDER BY timestamp DESC
		LIMIT ?`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.Metrics: query %q: %w", key, err)
	}
	defer rows.Close()

	var points []MetricPoint
	for rows.Next() {
		var p MetricPoint
		if err := rows.Scan(&p.Metric, &p.Value, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("storage.Metrics: scan row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Prune borra historial y métricas fuera de la ventana de retención.
// Los registros de merchant_memory no se tocan.
func (s *Store) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	res, err := s.db.ExecContext(ctx, `DELETE FROM decision_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: history: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM performance_metrics WHERE timestamp < ?`, cutoff); err != nil {
		return deleted, fmt.Errorf("storage.Prune: metrics: %w", err)
	}
	return deleted, nil
}

// Merchants lista las claves con memoria almacenada.
func (s *Store) Merchants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT merchant_key FROM merchant_memory ORDER BY merchant_key`)
	if err != nil {
		return nil, fmt.Errorf("storage.Merchants: query: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("storage.Merchants: scan row: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *Store) Close() error {
	return s.db.Close()
}
