// Package diag persists per-turn diagnostic records — fired signals,
// the resulting situation, and the selected behaviors with scores —
// for offline evaluation. The store is optional and nil-safe; it is
// never part of the engine's functional contract.
package diag

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS turn_log (
	turn_id         TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	utterance       TEXT NOT NULL,
	intent          TEXT NOT NULL,
	intent_score    REAL NOT NULL,
	signals_json    TEXT,
	situation_json  TEXT NOT NULL,
	knowledge_json  TEXT,
	selected_json   TEXT,
	total_tokens    INTEGER NOT NULL,
	drift           REAL NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_log_conversation ON turn_log(conversation_id, created_at);
`

// #endregion schema

// #region types

// SelectedBehavior records one chosen behavior with its score.
type SelectedBehavior struct {
	BehaviorID  string  `json:"behavior_id"`
	Type        string  `json:"type"`
	Score       float64 `json:"score"`
	TokenBudget int     `json:"token_budget"`
}

// FiredSignal records one detected signal.
type FiredSignal struct {
	RuleID     string  `json:"rule_id"`
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// TurnRecord is one turn's full diagnostic snapshot.
type TurnRecord struct {
	TurnID         string
	ConversationID string
	Utterance      string
	Intent         string
	IntentScore    float64
	Signals        []FiredSignal
	Situation      map[string]float64
	Knowledge      map[string]float64 // normalized values
	Selected       []SelectedBehavior
	TotalTokens    int
	Drift          float64
	CreatedAt      time.Time
}

// #endregion types

// #region store

// Store writes turn records to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// #endregion store

// #region record

// Record inserts one turn record. Nil stores accept and drop silently.
func (s *Store) Record(rec TurnRecord) error {
	if s == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	signalsJSON, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	situationJSON, err := json.Marshal(rec.Situation)
	if err != nil {
		return fmt.Errorf("marshal situation: %w", err)
	}
	knowledgeJSON, err := json.Marshal(rec.Knowledge)
	if err != nil {
		return fmt.Errorf("marshal knowledge: %w", err)
	}
	selectedJSON, err := json.Marshal(rec.Selected)
	if err != nil {
		return fmt.Errorf("marshal selected: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO turn_log (turn_id, conversation_id, utterance, intent, intent_score,
			signals_json, situation_json, knowledge_json, selected_json,
			total_tokens, drift, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TurnID, rec.ConversationID, rec.Utterance, rec.Intent, rec.IntentScore,
		string(signalsJSON), string(situationJSON), string(knowledgeJSON), string(selectedJSON),
		rec.TotalTokens, rec.Drift, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert turn record: %w", err)
	}
	return nil
}

// #endregion record

// #region queries

// Recent returns the latest records for a conversation, newest first.
// An empty conversationID returns records across all conversations.
func (s *Store) Recent(conversationID string, limit int) ([]TurnRecord, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT turn_id, conversation_id, utterance, intent, intent_score,
		signals_json, situation_json, knowledge_json, selected_json,
		total_tokens, drift, created_at
		FROM turn_log`
	args := []any{}
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turn log: %w", err)
	}
	defer rows.Close()

	var records []TurnRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Conversations lists distinct conversation ids, newest activity first.
func (s *Store) Conversations() ([]string, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT conversation_id FROM turn_log GROUP BY conversation_id ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRecord(rows *sql.Rows) (TurnRecord, error) {
	var rec TurnRecord
	var signalsJSON, situationJSON, knowledgeJSON, selectedJSON sql.NullString
	var createdStr string

	err := rows.Scan(&rec.TurnID, &rec.ConversationID, &rec.Utterance, &rec.Intent, &rec.IntentScore,
		&signalsJSON, &situationJSON, &knowledgeJSON, &selectedJSON,
		&rec.TotalTokens, &rec.Drift, &createdStr)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("scan turn record: %w", err)
	}

	if signalsJSON.Valid && signalsJSON.String != "" {
		if err := json.Unmarshal([]byte(signalsJSON.String), &rec.Signals); err != nil {
			return TurnRecord{}, fmt.Errorf("unmarshal signals: %w", err)
		}
	}
	if situationJSON.Valid && situationJSON.String != "" {
		if err := json.Unmarshal([]byte(situationJSON.String), &rec.Situation); err != nil {
			return TurnRecord{}, fmt.Errorf("unmarshal situation: %w", err)
		}
	}
	if knowledgeJSON.Valid && knowledgeJSON.String != "" {
		if err := json.Unmarshal([]byte(knowledgeJSON.String), &rec.Knowledge); err != nil {
			return TurnRecord{}, fmt.Errorf("unmarshal knowledge: %w", err)
		}
	}
	if selectedJSON.Valid && selectedJSON.String != "" {
		if err := json.Unmarshal([]byte(selectedJSON.String), &rec.Selected); err != nil {
			return TurnRecord{}, fmt.Errorf("unmarshal selected: %w", err)
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion queries
