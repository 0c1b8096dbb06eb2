// Package database provides the storage layer for freightview.
//
// It implements the Store interface using SQLite with WAL mode. The API
// server keeps stages, freight and promotions here; the dashboard uses the
// same service as its local preference store.
package database

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Mr-Dark-debug/freightview/internal/api"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when inserting a duplicate promotion.
	ErrAlreadyExists = errors.New("already exists")
)

// Store defines the persistence used by the API server.
type Store interface {
	// UpsertStage creates a stage or replaces its status. The uid and
	// creation time of an existing stage are kept.
	UpsertStage(stage *api.Stage) error
	// GetStage returns one stage.
	GetStage(project, name string) (*api.Stage, error)
	// ListStages returns a project's stages in creation order.
	ListStages(project string) ([]api.Stage, error)

	// UpsertFreight stores a freight's chart list.
	UpsertFreight(project string, freight api.Freight) error
	// GetFreight returns one freight.
	GetFreight(project, id string) (*api.Freight, error)
	// RecordFreight makes freight the stage's current freight, pushing the
	// previous current freight onto the front of bounded history.
	RecordFreight(project, stage, freightID string, historyLimit int) (*api.Stage, error)

	// InsertPromotion persists a new promotion.
	InsertPromotion(p *api.Promotion) error
	// GetPromotion returns one promotion.
	GetPromotion(project, name string) (*api.Promotion, error)
	// UpdatePromotionStatus sets a promotion's phase and error.
	UpdatePromotionStatus(project, name string, status api.PromotionStatus) (*api.Promotion, error)
	// SetPromotionStatus sets a promotion's status and, on a transition
	// into Succeeded, records its freight into the stage atomically.
	SetPromotionStatus(project, name string, status api.PromotionStatus, historyLimit int) (*api.Promotion, *api.Stage, error)
	// DeletePromotion removes a promotion and returns its last state.
	DeletePromotion(project, name string) (*api.Promotion, error)
	// ListPromotions returns a stage's promotions, newest first.
	ListPromotions(project, stage string) ([]api.Promotion, error)

	// Close gracefully shuts down the database connection.
	Close() error
}

// Prefs is the key/value preference store used by the dashboard.
type Prefs interface {
	GetBool(key string, def bool) (bool, error)
	SetBool(key string, value bool) error
}

// ============================================================
// DBService Implementation
// ============================================================

// DBService implements Store and Prefs using SQLite.
// Access is serialized through a read-write mutex.
type DBService struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	stmtUpsertStage     *sql.Stmt
	stmtUpsertFreight   *sql.Stmt
	stmtInsertPromotion *sql.Stmt
	stmtSetPreference   *sql.Stmt
}

// NewDBService opens the database at path, initializes the schema and
// prepares frequently used statements.
//
// Use ":memory:" for in-memory databases (useful for testing).
func NewDBService(path string) (*DBService, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	svc := &DBService{
		db:   db,
		path: path,
	}

	if err := svc.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if err := svc.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}

	return svc, nil
}

func (s *DBService) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

func (s *DBService) prepareStatements() error {
	var err error

	s.stmtUpsertStage, err = s.db.Prepare(`
		INSERT INTO stages (project, name, uid, created_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project, name) DO UPDATE SET
			status = excluded.status
	`)
	if err != nil {
		return fmt.Errorf("preparing UpsertStage: %w", err)
	}

	s.stmtUpsertFreight, err = s.db.Prepare(`
		INSERT INTO freight (project, id, charts, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project, id) DO UPDATE SET
			charts = excluded.charts
	`)
	if err != nil {
		return fmt.Errorf("preparing UpsertFreight: %w", err)
	}

	s.stmtInsertPromotion, err = s.db.Prepare(`
		INSERT INTO promotions (project, name, uid, stage, freight, phase, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertPromotion: %w", err)
	}

	s.stmtSetPreference, err = s.db.Prepare(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing SetPreference: %w", err)
	}

	return nil
}

// ============================================================
// Stages and freight
// ============================================================

// UpsertStage creates a stage or replaces its status.
func (s *DBService) UpsertStage(stage *api.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertStage(s.stmtUpsertStage, stage)
}

func (s *DBService) upsertStage(stmt *sql.Stmt, stage *api.Stage) error {
	status, err := json.Marshal(stage.Status)
	if err != nil {
		return fmt.Errorf("marshaling stage status: %w", err)
	}
	created := stage.Metadata.CreationTimestamp
	if created.IsZero() {
		created = time.Now()
	}
	_, err = stmt.Exec(
		stage.Metadata.Namespace, stage.Metadata.Name, stage.Metadata.UID,
		created.UnixNano(), string(status),
	)
	if err != nil {
		return fmt.Errorf("upserting stage %s/%s: %w", stage.Metadata.Namespace, stage.Metadata.Name, err)
	}
	return nil
}

// GetStage returns one stage.
func (s *DBService) GetStage(project, name string) (*api.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getStage(s.db, project, name)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getStage(q queryRower, project, name string) (*api.Stage, error) {
	row := q.QueryRow(`
		SELECT project, name, uid, created_at, status
		FROM stages WHERE project = ? AND name = ?
	`, project, name)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stage %s/%s: %w", project, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying stage %s/%s: %w", project, name, err)
	}
	return stage, nil
}

// ListStages returns a project's stages in creation order.
func (s *DBService) ListStages(project string) ([]api.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT project, name, uid, created_at, status
		FROM stages WHERE project = ?
		ORDER BY created_at ASC, name ASC
	`, project)
	if err != nil {
		return nil, fmt.Errorf("querying stages for %s: %w", project, err)
	}
	defer rows.Close()

	stages := []api.Stage{}
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stage row: %w", err)
		}
		stages = append(stages, *st)
	}
	return stages, rows.Err()
}

// UpsertFreight stores a freight's chart list.
func (s *DBService) UpsertFreight(project string, freight api.Freight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charts, err := json.Marshal(freight.Charts)
	if err != nil {
		return fmt.Errorf("marshaling freight charts: %w", err)
	}
	if _, err := s.stmtUpsertFreight.Exec(project, freight.ID, string(charts), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("upserting freight %s/%s: %w", project, freight.ID, err)
	}
	return nil
}

// GetFreight returns one freight.
func (s *DBService) GetFreight(project, id string) (*api.Freight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFreight(s.db, project, id)
}

func getFreight(q queryRower, project, id string) (*api.Freight, error) {
	var charts string
	err := q.QueryRow(`SELECT charts FROM freight WHERE project = ? AND id = ?`, project, id).Scan(&charts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("freight %s/%s: %w", project, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying freight %s/%s: %w", project, id, err)
	}
	f := &api.Freight{ID: id}
	if err := json.Unmarshal([]byte(charts), &f.Charts); err != nil {
		return nil, fmt.Errorf("decoding freight %s charts: %w", id, err)
	}
	return f, nil
}

// RecordFreight makes freightID the current freight of a stage. The
// previous current freight becomes history[0]; history longer than
// historyLimit is trimmed from the oldest end. A limit <= 0 keeps all.
func (s *DBService) RecordFreight(project, stage, freightID string, historyLimit int) (*api.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning record freight transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	st, err := s.recordFreight(tx, project, stage, freightID, historyLimit)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing record freight transaction: %w", err)
	}
	return st, nil
}

func (s *DBService) recordFreight(tx *sql.Tx, project, stage, freightID string, historyLimit int) (*api.Stage, error) {
	st, err := getStage(tx, project, stage)
	if err != nil {
		return nil, err
	}
	f, err := getFreight(tx, project, freightID)
	if err != nil {
		return nil, err
	}

	if cur := st.Status.CurrentFreight; cur != nil {
		history := make([]api.Freight, 0, len(st.Status.History)+1)
		history = append(history, *cur)
		history = append(history, st.Status.History...)
		st.Status.History = history
	}
	if historyLimit > 0 && len(st.Status.History) > historyLimit {
		st.Status.History = st.Status.History[:historyLimit]
	}
	st.Status.CurrentFreight = f

	if err := s.upsertStage(tx.Stmt(s.stmtUpsertStage), st); err != nil {
		return nil, err
	}
	return st, nil
}

// ============================================================
// Promotions
// ============================================================

// InsertPromotion persists a new promotion.
func (s *DBService) InsertPromotion(p *api.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := getPromotion(s.db, p.Metadata.Namespace, p.Metadata.Name); err == nil {
		return fmt.Errorf("promotion %s/%s: %w", p.Metadata.Namespace, p.Metadata.Name, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	created := p.Metadata.CreationTimestamp
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.stmtInsertPromotion.Exec(
		p.Metadata.Namespace, p.Metadata.Name, p.Metadata.UID,
		p.Spec.Stage, p.Spec.Freight,
		string(p.Status.Phase), p.Status.Error, created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting promotion %s: %w", p.Metadata.Name, err)
	}
	return nil
}

// GetPromotion returns one promotion.
func (s *DBService) GetPromotion(project, name string) (*api.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPromotion(s.db, project, name)
}

func getPromotion(q queryRower, project, name string) (*api.Promotion, error) {
	row := q.QueryRow(`
		SELECT project, name, uid, stage, freight, phase, error, created_at
		FROM promotions WHERE project = ? AND name = ?
	`, project, name)
	p, err := scanPromotion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("promotion %s/%s: %w", project, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying promotion %s/%s: %w", project, name, err)
	}
	return p, nil
}

// UpdatePromotionStatus sets a promotion's phase and error and returns
// the updated promotion.
func (s *DBService) UpdatePromotionStatus(project, name string, status api.PromotionStatus) (*api.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE promotions SET phase = ?, error = ?
		WHERE project = ? AND name = ?
	`, string(status.Phase), status.Error, project, name)
	if err != nil {
		return nil, fmt.Errorf("updating promotion %s/%s: %w", project, name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("promotion %s/%s: %w", project, name, ErrNotFound)
	}
	return getPromotion(s.db, project, name)
}

// SetPromotionStatus updates a promotion's status in one transaction.
// When the phase moves into Succeeded, the promotion's freight is
// recorded into its stage first and the stage is returned; otherwise the
// returned stage is nil. Nothing is written if any step fails.
func (s *DBService) SetPromotionStatus(project, name string, status api.PromotionStatus, historyLimit int) (*api.Promotion, *api.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("beginning promotion status transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	prev, err := getPromotion(tx, project, name)
	if err != nil {
		return nil, nil, err
	}

	var promoted *api.Stage
	if status.Phase == api.PhaseSucceeded && prev.Status.Phase != api.PhaseSucceeded {
		promoted, err = s.recordFreight(tx, project, prev.Spec.Stage, prev.Spec.Freight, historyLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("promoting freight %s into %s: %w", prev.Spec.Freight, prev.Spec.Stage, err)
		}
	}

	if _, err := tx.Exec(`
		UPDATE promotions SET phase = ?, error = ?
		WHERE project = ? AND name = ?
	`, string(status.Phase), status.Error, project, name); err != nil {
		return nil, nil, fmt.Errorf("updating promotion %s/%s: %w", project, name, err)
	}
	updated, err := getPromotion(tx, project, name)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing promotion status transaction: %w", err)
	}
	return updated, promoted, nil
}

// DeletePromotion removes a promotion and returns its last state.
func (s *DBService) DeletePromotion(project, name string) (*api.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := getPromotion(s.db, project, name)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`DELETE FROM promotions WHERE project = ? AND name = ?`, project, name); err != nil {
		return nil, fmt.Errorf("deleting promotion %s/%s: %w", project, name, err)
	}
	return p, nil
}

// ListPromotions returns a stage's promotions, newest first.
func (s *DBService) ListPromotions(project, stage string) ([]api.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT project, name, uid, stage, freight, phase, error, created_at
		FROM promotions
		WHERE project = ? AND stage = ?
		ORDER BY created_at DESC
	`, project, stage)
	if err != nil {
		return nil, fmt.Errorf("querying promotions for %s/%s: %w", project, stage, err)
	}
	defer rows.Close()

	promotions := []api.Promotion{}
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning promotion row: %w", err)
		}
		promotions = append(promotions, *p)
	}
	return promotions, rows.Err()
}

// ============================================================
// Preferences
// ============================================================

// GetBool returns the boolean stored under key, or def when unset.
func (s *DBService) GetBool(key string, def bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("reading preference %s: %w", key, err)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		// Non-fatal: a hand-edited value falls back to the default
		return def, nil
	}
	return v, nil
}

// SetBool stores a boolean under key.
func (s *DBService) SetBool(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stmtSetPreference.Exec(key, strconv.FormatBool(value), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

// Close closes prepared statements and the connection pool.
func (s *DBService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []*sql.Stmt{
		s.stmtUpsertStage, s.stmtUpsertFreight,
		s.stmtInsertPromotion, s.stmtSetPreference,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}

// ============================================================
// Scan Helpers
// ============================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanStage(row scanner) (*api.Stage, error) {
	st := &api.Stage{}
	var created int64
	var status string
	if err := row.Scan(&st.Metadata.Namespace, &st.Metadata.Name, &st.Metadata.UID, &created, &status); err != nil {
		return nil, err
	}
	st.Metadata.CreationTimestamp = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(status), &st.Status); err != nil {
		return nil, fmt.Errorf("decoding stage %s status: %w", st.Metadata.Name, err)
	}
	return st, nil
}

func scanPromotion(row scanner) (*api.Promotion, error) {
	p := &api.Promotion{}
	var phase string
	var created int64
	if err := row.Scan(
		&p.Metadata.Namespace, &p.Metadata.Name, &p.Metadata.UID,
		&p.Spec.Stage, &p.Spec.Freight, &phase, &p.Status.Error, &created,
	); err != nil {
		return nil, err
	}
	p.Status.Phase = api.PromotionPhase(phase)
	p.Metadata.CreationTimestamp = time.Unix(0, created).UTC()
	return p, nil
}
