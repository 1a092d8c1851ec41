package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bella/server/internal/model"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, err
	}
	// 单连接串行写，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	st := &SQLiteStore{db: db}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveConversation(ctx context.Context, rec *model.ConversationRecord) (int64, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations
		(session_id, user_input, reply, provider, sentiment, user_emotion, lang, translation_degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.UserInput,
		rec.Reply,
		rec.Provider,
		rec.Sentiment,
		rec.UserEmotion,
		rec.Language,
		boolToInt(rec.TranslationDegraded),
		toTS(createdAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.ConversationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_input, reply, provider, sentiment, user_emotion, lang, translation_degraded, created_at
		FROM conversations
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConversationRecord
	for rows.Next() {
		var rec model.ConversationRecord
		var degraded int
		var createdAt string
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.UserInput,
			&rec.Reply,
			&rec.Provider,
			&rec.Sentiment,
			&rec.UserEmotion,
			&rec.Language,
			&degraded,
			&createdAt,
		); err != nil {
			return nil, err
		}
		rec.TranslationDegraded = intToBool(degraded)
		rec.CreatedAt = fromTS(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SeedQuests(ctx context.Context, sessionID string, quests []model.Quest) error {
	for _, q := range quests {
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO quests (session_id, id, name, description, reward, pattern, completed)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, q.ID, q.Name, q.Description, q.Reward, q.Pattern, boolToInt(q.Completed),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ActiveQuests(ctx context.Context, sessionID string) ([]model.Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, reward, pattern
		FROM quests
		WHERE session_id = ? AND completed = 0
		ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Quest
	for rows.Next() {
		var q model.Quest
		if err := rows.Scan(&q.ID, &q.Name, &q.Description, &q.Reward, &q.Pattern); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CompletedQuests(ctx context.Context, sessionID string) ([]model.Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, reward, pattern
		FROM quests
		WHERE session_id = ? AND completed = 1
		ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Quest
	for rows.Next() {
		q := model.Quest{Completed: true}
		if err := rows.Scan(&q.ID, &q.Name, &q.Description, &q.Reward, &q.Pattern); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CompleteQuest(ctx context.Context, sessionID string, questID int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE quests SET completed = 1 WHERE session_id = ? AND id = ?`, sessionID, questID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteStore) SaveReminder(ctx context.Context, sessionID string, r model.Reminder) (model.Reminder, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (session_id, task, due_at, created_at, delivered)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, r.Task, toTS(r.DueAt), toTS(r.CreatedAt), boolToInt(r.Delivered),
	)
	if err != nil {
		return model.Reminder{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Reminder{}, err
	}
	r.ID = id
	return r, nil
}

func (s *SQLiteStore) PendingReminders(ctx context.Context, sessionID string) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, due_at, created_at
		FROM reminders
		WHERE session_id = ? AND delivered = 0
		ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		var r model.Reminder
		var dueAt, createdAt string
		if err := rows.Scan(&r.ID, &r.Task, &dueAt, &createdAt); err != nil {
			return nil, err
		}
		r.DueAt = fromTS(dueAt)
		r.CreatedAt = fromTS(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 文本时间戳的字典序不等于时间序
	sortReminders(out)
	return out, nil
}

func (s *SQLiteStore) MarkReminderDelivered(ctx context.Context, sessionID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET delivered = 1 WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteStore) SaveCharacter(ctx context.Context, sessionID string, c model.CharacterState) error {
	personality, err := json.Marshal(c.Personality)
	if err != nil {
		return err
	}
	voice, err := json.Marshal(c.Voice)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO character_state (session_id, prompt, image_url, personality, voice_settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, c.Prompt, c.ImageURL, string(personality), string(voice), toTS(c.UpdatedAt),
	)
	return err
}

func (s *SQLiteStore) LoadCharacter(ctx context.Context, sessionID string) (*model.CharacterState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT prompt, image_url, personality, voice_settings, updated_at
		FROM character_state
		WHERE session_id = ?`,
		sessionID,
	)
	var c model.CharacterState
	var personality, voice, updatedAt string
	err := row.Scan(&c.Prompt, &c.ImageURL, &personality, &voice, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(personality), &c.Personality); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(voice), &c.Voice); err != nil {
		return nil, err
	}
	c.UpdatedAt = fromTS(updatedAt)
	return &c, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		PRAGMA journal_mode=WAL;
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_input TEXT NOT NULL,
			reply TEXT NOT NULL,
			provider TEXT NOT NULL,
			sentiment REAL NOT NULL,
			user_emotion TEXT NOT NULL,
			lang TEXT NOT NULL DEFAULT 'eng',
			translation_degraded INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, id);
		CREATE TABLE IF NOT EXISTS quests (
			session_id TEXT NOT NULL,
			id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			reward TEXT NOT NULL,
			pattern TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, id)
		);
		CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			task TEXT NOT NULL,
			due_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			delivered INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS character_state (
			session_id TEXT PRIMARY KEY,
			prompt TEXT NOT NULL,
			image_url TEXT NOT NULL,
			personality TEXT NOT NULL,
			voice_settings TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fromTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func intToBool(v int) bool {
	return v != 0
}
