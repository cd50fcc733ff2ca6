package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is a fixed-width UTC format so lexicographic order in SQL
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the embedded-database backend. It satisfies the same
// Log/Profiles contract as FileStore; the synthesis engine does not know
// which one it is talking to.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "persona.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migration files that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// Append validates rec and inserts it inside a transaction that also
// enforces per-user timestamp ordering. The single-connection pool
// serializes concurrent appends.
func (s *SQLiteStore) Append(ctx context.Context, rec *Interaction) error {
	if err := validateInteraction(rec); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	var lastStr sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM interactions WHERE username = ?`, rec.Username,
	).Scan(&lastStr); err != nil {
		return fmt.Errorf("reading last timestamp for %s: %w", rec.Username, err)
	}
	if lastStr.Valid {
		last, err := time.Parse(timeLayout, lastStr.String)
		if err != nil {
			return fmt.Errorf("parsing last timestamp for %s: %w", rec.Username, err)
		}
		if err := checkMonotonic(last, rec); err != nil {
			return err
		}
	}

	var role, message, topics, targetRole, feedback sql.NullString
	var score sql.NullFloat64
	switch rec.Kind {
	case KindChat:
		role = sql.NullString{String: rec.Chat.Role, Valid: true}
		message = sql.NullString{String: rec.Chat.Message, Valid: true}
		if rec.Chat.Topics != nil {
			b, err := json.Marshal(rec.Chat.Topics)
			if err != nil {
				return fmt.Errorf("encoding topics: %w", err)
			}
			topics = sql.NullString{String: string(b), Valid: true}
		}
	case KindResume:
		score = sql.NullFloat64{Float64: rec.Resume.Score, Valid: true}
		targetRole = sql.NullString{String: rec.Resume.TargetRole, Valid: true}
		feedback = sql.NullString{String: rec.Resume.Feedback, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interactions (id, username, kind, timestamp, role, message, topics, score, target_role, feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Username, rec.Kind, rec.Timestamp.Format(timeLayout),
		role, message, topics, score, targetRole, feedback,
	); err != nil {
		return fmt.Errorf("inserting interaction for %s: %w", rec.Username, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

// ReadAll returns the user's interactions in timestamp order.
func (s *SQLiteStore) ReadAll(ctx context.Context, username string) ([]Interaction, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, kind, timestamp, role, message, topics, score, target_role, feedback
		FROM interactions WHERE username = ? ORDER BY timestamp ASC, id ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("querying interactions for %s: %w", username, err)
	}
	defer rows.Close()

	var recs []Interaction
	for rows.Next() {
		var rec Interaction
		var ts string
		var role, message, topics, targetRole, feedback sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Kind, &ts,
			&role, &message, &topics, &score, &targetRole, &feedback); err != nil {
			return nil, err
		}
		if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		switch rec.Kind {
		case KindChat:
			rec.Chat = &ChatTurn{Role: role.String, Message: message.String}
			if topics.Valid && topics.String != "" {
				if err := json.Unmarshal([]byte(topics.String), &rec.Chat.Topics); err != nil {
					return nil, fmt.Errorf("decoding topics: %w", err)
				}
			}
		case KindResume:
			rec.Resume = &ResumeAnalysis{
				Score:      score.Float64,
				TargetRole: targetRole.String,
				Feedback:   feedback.String,
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Stats counts a user's interactions by kind.
func (s *SQLiteStore) Stats(ctx context.Context, username string) (Stats, error) {
	if err := ValidateUsername(username); err != nil {
		return Stats{}, err
	}
	st := Stats{Username: username}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN kind = 'chat' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN kind = 'resume' THEN 1 ELSE 0 END), 0)
		FROM interactions WHERE username = ?`, username,
	).Scan(&st.TotalInteractions, &st.TotalChatTurns, &st.TotalAnalyses)
	if err != nil {
		return Stats{}, fmt.Errorf("counting interactions for %s: %w", username, err)
	}
	return st, nil
}

// Usernames lists every user with at least one interaction, sorted.
func (s *SQLiteStore) Usernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT username FROM interactions ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetProfile reads the user's latest profile document.
func (s *SQLiteStore) GetProfile(ctx context.Context, username string) (*Profile, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM profiles WHERE username = ?`, username,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile for %s: %w", username, err)
	}
	var p Profile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decoding profile for %s: %w", username, err)
	}
	return &p, nil
}

// PutProfile upserts the profile in one transaction, advancing the revision.
func (s *SQLiteStore) PutProfile(ctx context.Context, p *Profile) error {
	if p == nil {
		return &ValidationError{Field: "profile", Reason: "profile is nil"}
	}
	if err := ValidateUsername(p.Username); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM profiles WHERE username = ?`, p.Username,
	).Scan(&revision)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading revision for %s: %w", p.Username, err)
	}
	p.Revision = revision + 1

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile for %s: %w", p.Username, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (username, revision, updated_at, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			revision = excluded.revision,
			updated_at = excluded.updated_at,
			payload = excluded.payload`,
		p.Username, p.Revision, p.UpdatedAt.UTC().Format(timeLayout), string(payload),
	); err != nil {
		return fmt.Errorf("writing profile for %s: %w", p.Username, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing profile for %s: %w", p.Username, err)
	}
	return nil
}
