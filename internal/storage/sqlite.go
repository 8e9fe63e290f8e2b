// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		min_difficulty INTEGER NOT NULL,
		max_difficulty INTEGER NOT NULL,
		start_difficulty INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contents (
		id TEXT PRIMARY KEY,
		topic_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		difficulty INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_contents_topic ON contents(topic_id, difficulty);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		content_id TEXT NOT NULL,
		correct INTEGER NOT NULL,
		response_time_ms INTEGER NOT NULL,
		hint_used INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_student_time ON events(student_id, timestamp);

	CREATE TABLE IF NOT EXISTS mastery (
		student_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		estimate REAL NOT NULL,
		confidence INTEGER NOT NULL,
		difficulty INTEGER NOT NULL,
		streak INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (student_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS profiles (
		student_id TEXT PRIMARY KEY,
		distribution TEXT NOT NULL,
		sample_count INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveContent upserts a content item. The embedding is stored as a
// little-endian float32 BLOB.
func (s *SQLiteStorage) SaveContent(ctx context.Context, item *models.ContentItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contents (id, topic_id, title, description, difficulty, content_type, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   topic_id=excluded.topic_id, title=excluded.title, description=excluded.description,
		   difficulty=excluded.difficulty, content_type=excluded.content_type, embedding=excluded.embedding`,
		item.ID, item.TopicID, item.Title, item.Description, item.Difficulty,
		string(item.Type), utils.Float32sToBytes(item.Embedding), item.CreatedAt,
	)
	return err
}

// GetContent returns a content item by ID.
func (s *SQLiteStorage) GetContent(ctx context.Context, id string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic_id, title, description, difficulty, content_type, embedding, created_at
		 FROM contents WHERE id = ?`, id)
	item, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %q: %w", id, models.ErrNotFound)
	}
	return item, err
}

// DeleteContent removes a content item. Deleting an absent ID is a no-op.
func (s *SQLiteStorage) DeleteContent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	return err
}

// ListContents returns all content items ordered by ID.
func (s *SQLiteStorage) ListContents(ctx context.Context) ([]*models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic_id, title, description, difficulty, content_type, embedding, created_at
		 FROM contents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var ctype string
	var blob []byte
	var desc sql.NullString
	if err := row.Scan(&item.ID, &item.TopicID, &item.Title, &desc, &item.Difficulty,
		&ctype, &blob, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Description = desc.String
	item.Type = models.ContentType(ctype)
	item.Embedding = utils.BytesToFloat32s(blob)
	return &item, nil
}

// SaveTopic upserts a topic's curriculum metadata.
func (s *SQLiteStorage) SaveTopic(ctx context.Context, topic *models.Topic) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO topics (id, name, min_difficulty, max_difficulty, start_difficulty)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, min_difficulty=excluded.min_difficulty,
		   max_difficulty=excluded.max_difficulty, start_difficulty=excluded.start_difficulty`,
		topic.ID, topic.Name, topic.MinDifficulty, topic.MaxDifficulty, topic.StartDifficulty,
	)
	return err
}

// ListTopics returns all topics ordered by ID.
func (s *SQLiteStorage) ListTopics(ctx context.Context) ([]*models.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, min_difficulty, max_difficulty, start_difficulty FROM topics ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []*models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.MinDifficulty, &t.MaxDifficulty, &t.StartDifficulty); err != nil {
			return nil, err
		}
		topics = append(topics, &t)
	}
	return topics, rows.Err()
}

// AppendEvent inserts one interaction event. Events are never updated.
func (s *SQLiteStorage) AppendEvent(ctx context.Context, ev *models.InteractionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, student_id, content_id, correct, response_time_ms, hint_used, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.StudentID, ev.ContentID, boolToInt(ev.Correct),
		ev.ResponseTimeMs, boolToInt(ev.HintUsed), ev.Timestamp,
	)
	return err
}

// RecentEvents returns the student's most recent events, newest first.
func (s *SQLiteStorage) RecentEvents(ctx context.Context, studentID string, limit int) ([]*models.InteractionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, content_id, correct, response_time_ms, hint_used, timestamp
		 FROM events WHERE student_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.InteractionEvent
	for rows.Next() {
		var ev models.InteractionEvent
		var correct, hint int
		if err := rows.Scan(&ev.ID, &ev.StudentID, &ev.ContentID, &correct,
			&ev.ResponseTimeMs, &hint, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Correct = correct != 0
		ev.HintUsed = hint != 0
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// SaveMastery upserts a mastery state snapshot.
func (s *SQLiteStorage) SaveMastery(ctx context.Context, st *models.MasteryState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mastery (student_id, topic_id, estimate, confidence, difficulty, streak, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id, topic_id) DO UPDATE SET
		   estimate=excluded.estimate, confidence=excluded.confidence,
		   difficulty=excluded.difficulty, streak=excluded.streak, updated_at=excluded.updated_at`,
		st.StudentID, st.TopicID, st.Estimate, st.Confidence, st.Difficulty, st.Streak, st.UpdatedAt,
	)
	return err
}

// ListMastery returns all persisted mastery states.
func (s *SQLiteStorage) ListMastery(ctx context.Context) ([]*models.MasteryState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, topic_id, estimate, confidence, difficulty, streak, updated_at FROM mastery`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*models.MasteryState
	for rows.Next() {
		var st models.MasteryState
		if err := rows.Scan(&st.StudentID, &st.TopicID, &st.Estimate, &st.Confidence,
			&st.Difficulty, &st.Streak, &st.UpdatedAt); err != nil {
			return nil, err
		}
		states = append(states, &st)
	}
	return states, rows.Err()
}

// SaveProfile upserts a style profile. The distribution is stored as JSON,
// which preserves weights well past the 4-decimal round-trip requirement.
func (s *SQLiteStorage) SaveProfile(ctx context.Context, p *models.StyleProfile) error {
	dist, err := json.Marshal(p.Distribution)
	if err != nil {
		return fmt.Errorf("failed to marshal distribution: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (student_id, distribution, sample_count, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(student_id) DO UPDATE SET
		   distribution=excluded.distribution, sample_count=excluded.sample_count, updated_at=excluded.updated_at`,
		p.StudentID, string(dist), p.SampleCount, p.UpdatedAt,
	)
	return err
}

// ListProfiles returns all persisted style profiles.
func (s *SQLiteStorage) ListProfiles(ctx context.Context) ([]*models.StyleProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, distribution, sample_count, updated_at FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.StyleProfile
	for rows.Next() {
		var p models.StyleProfile
		var dist string
		if err := rows.Scan(&p.StudentID, &dist, &p.SampleCount, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dist), &p.Distribution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal distribution for %s: %w", p.StudentID, err)
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// CountContents returns the number of stored content items.
func (s *SQLiteStorage) CountContents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contents`).Scan(&n)
	return n, err
}

// CountEvents returns the number of logged interaction events.
func (s *SQLiteStorage) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
