package persist

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/soocke/maskbot-go/domain/annotate"
)

// Store mirrors the metadata table into SQLite, one row set per session.
type Store struct {
	db      *sql.DB
	path    string
	session string
	mu      sync.Mutex
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(path, session string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path, session: session}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		seq INTEGER NOT NULL,
		image TEXT NOT NULL,
		mask TEXT NOT NULL,
		click_x TEXT NOT NULL,
		click_y TEXT NOT NULL,
		area INTEGER NOT NULL,
		bbox_x INTEGER NOT NULL,
		bbox_y INTEGER NOT NULL,
		bbox_w INTEGER NOT NULL,
		bbox_h INTEGER NOT NULL,
		score REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (session, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_annotations_image ON annotations(image);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Replace swaps this session's rows for rows in one transaction.
func (s *Store) Replace(rows []annotate.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM annotations WHERE session = ?`, s.session); err != nil {
		return errors.Wrap(err, "clear session rows")
	}
	stmt, err := tx.Prepare(`
		INSERT INTO annotations (session, seq, image, mask, click_x, click_y, area, bbox_x, bbox_y, bbox_w, bbox_h, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()
	for i, r := range rows {
		b := r.BBox
		if _, err := stmt.Exec(s.session, i, r.Image, r.Mask, formatInts(r.ClickX), formatInts(r.ClickY),
			r.Area, b.Min.X, b.Min.Y, b.Dx(), b.Dy(), r.Score); err != nil {
			return errors.Wrapf(err, "insert %s", r.Image)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Count returns the number of rows stored for this session.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM annotations WHERE session = ?`, s.session).Scan(&n)
	return n, errors.Wrap(err, "count rows")
}

// Images returns this session's image names in save order.
func (s *Store) Images() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT image FROM annotations WHERE session = ? ORDER BY seq`, s.session)
	if err != nil {
		return nil, errors.Wrap(err, "query images")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
