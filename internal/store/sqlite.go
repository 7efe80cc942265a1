package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore persists campaigns in a single SQLite database. The full
// session record is stored as JSON next to a few indexed columns; a
// transaction per commit provides the same committed-state-only guarantee as
// the file store's atomic rename.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id            TEXT PRIMARY KEY,
    record        TEXT NOT NULL,
    status        TEXT NOT NULL,
    current_stage TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS campaign_events (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id TEXT NOT NULL,
    ts          INTEGER NOT NULL,
    type        TEXT NOT NULL,
    message     TEXT,
    data        TEXT
);

CREATE INDEX IF NOT EXISTS idx_campaign_events_campaign
ON campaign_events(campaign_id);
`

// OpenSQLite opens (creating if needed) the campaign database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=0&_synchronous=NORMAL&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, campaignID string) (campaign.Session, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM campaigns WHERE id = ?`, campaignID,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Session{}, fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	if err != nil {
		return campaign.Session{}, err
	}
	var sess campaign.Session
	if err := json.Unmarshal([]byte(record), &sess); err != nil {
		return campaign.Session{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, campaignID, err)
	}
	if err := sess.Validate(); err != nil {
		return campaign.Session{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, campaignID, err)
	}
	if sess.CampaignID != campaignID {
		return campaign.Session{}, fmt.Errorf("%w: record for %s stored under %s", ErrCorruptState, sess.CampaignID, campaignID)
	}
	return sess, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, sess campaign.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("refusing to commit invalid session %s: %w", sess.CampaignID, err)
	}
	sess.UpdatedAt = time.Now().UTC()
	record, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	// _txlock=immediate: the transaction takes the write lock up front, so
	// a second writer gets SQLITE_BUSY here rather than at commit time.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapBusy(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, record, status, current_stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			record        = excluded.record,
			status        = excluded.status,
			current_stage = excluded.current_stage,
			updated_at    = excluded.updated_at`,
		sess.CampaignID,
		string(record),
		string(sess.Status),
		string(sess.CurrentStage),
		sess.CreatedAt.UTC().UnixMilli(),
		sess.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return mapBusy(err)
	}
	if err := tx.Commit(); err != nil {
		return mapBusy(err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]campaign.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Session
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var sess campaign.Session
		if err := json.Unmarshal([]byte(record), &sess); err != nil {
			continue
		}
		if sess.Validate() != nil {
			continue
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, campaignID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, campaignID)
	if err != nil {
		return mapBusy(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM campaign_events WHERE campaign_id = ?`, campaignID)
	return nil
}

func (s *SQLiteStore) AppendEvent(campaignID string, ev Event) error {
	ev.TS = ev.TS.UTC()
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	var data []byte
	if ev.Data != nil {
		b, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		data = b
	}
	_, err := s.db.Exec(`
		INSERT INTO campaign_events (campaign_id, ts, type, message, data)
		VALUES (?, ?, ?, ?, ?)`,
		campaignID, ev.TS.UnixMilli(), ev.Type, ev.Message, string(data),
	)
	return mapBusy(err)
}

func (s *SQLiteStore) ReadEvents(campaignID string, max int) ([]Event, error) {
	q := `SELECT ts, type, message, data FROM campaign_events WHERE campaign_id = ? ORDER BY seq`
	args := []any{campaignID}
	if max > 0 {
		q += ` LIMIT ?`
		args = append(args, max)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ts      int64
			typ     string
			message sql.NullString
			data    sql.NullString
		)
		if err := rows.Scan(&ts, &typ, &message, &data); err != nil {
			return nil, err
		}
		ev := Event{
			TS:         time.UnixMilli(ts).UTC(),
			CampaignID: campaignID,
			Type:       typ,
			Message:    message.String,
		}
		if data.Valid && data.String != "" {
			_ = json.Unmarshal([]byte(data.String), &ev.Data)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func mapBusy(err error) error {
	if err == nil {
		return nil
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrConcurrentAccess, err)
		}
	}
	return err
}
