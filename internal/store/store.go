package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/livestore/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Schema version stamped into PRAGMA user_version.
const currentSchemaVersion = 1

// Config configures an Engine.
type Config struct {
	// Dir holds one <type>.db file per record type.
	Dir string

	// BusyTimeout is how long a connection waits on another writer.
	BusyTimeout time.Duration

	// DefaultCopyDepth is the relation depth for types not in CopyDepth.
	// record.Unlimited follows every relation.
	DefaultCopyDepth int

	// CopyDepth overrides DefaultCopyDepth per record type.
	CopyDepth map[record.Type]int
}

// Loop is the event loop a handle can be confined to. Handles owned by a
// loop receive change notifications on it.
type Loop interface {
	Post(fn func(ctx context.Context)) bool
}

var typePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Engine opens handles onto per-type SQLite databases and fans out change
// notifications after commits.
//
// The databases are configured with:
//   - WAL mode so readers never block the single writer
//   - NORMAL synchronous mode (balance durability/performance)
//   - BEGIN IMMEDIATE transactions so writers queue on the busy timeout
//     instead of failing on lock upgrade
type Engine struct {
	cfg Config

	mu       sync.Mutex
	dbs      map[record.Type]*sql.DB
	handles  map[string]*Handle
	watchers map[record.Type]map[string]*Live
	versions map[record.Type]int64
	closed   bool
}

// Open prepares an engine rooted at cfg.Dir, creating the directory.
// Databases are opened lazily, per type, on first use.
func Open(cfg Config) (*Engine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("store: empty directory")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", cfg.Dir, err)
	}
	return &Engine{
		cfg:      cfg,
		dbs:      make(map[record.Type]*sql.DB),
		handles:  make(map[string]*Handle),
		watchers: make(map[record.Type]map[string]*Live),
		versions: make(map[record.Type]int64),
	}, nil
}

// Dir returns the directory holding the type databases.
func (e *Engine) Dir() string {
	return e.cfg.Dir
}

// Types lists the record types that have a database in Dir, sorted.
func (e *Engine) Types() ([]record.Type, error) {
	paths, err := filepath.Glob(filepath.Join(e.cfg.Dir, "*.db"))
	if err != nil {
		return nil, err
	}
	var types []record.Type
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".db")
		if typePattern.MatchString(name) {
			types = append(types, record.Type(name))
		}
	}
	return types, nil
}

// CopyDepth returns how many relation levels a generic copy of rt follows.
func (e *Engine) CopyDepth(rt record.Type) int {
	if d, ok := e.cfg.CopyDepth[rt]; ok {
		return d
	}
	return e.cfg.DefaultCopyDepth
}

// Open returns a new handle onto rt's collection. A non-nil owner confines
// the handle to that loop and enables Watch.
//
// A failure here is an ErrCodeOpenFailed *Error and is not retried.
func (e *Engine) Open(ctx context.Context, rt record.Type, owner Loop) (*Handle, error) {
	db, err := e.database(rt)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, newError(ErrCodeOpenFailed, rt, "open", err)
	}

	h := &Handle{
		id:    uuid.Must(uuid.NewV7()).String(),
		rt:    rt,
		eng:   e,
		conn:  conn,
		owner: owner,
		lives: make(map[string]*Live),
	}
	h.seen = e.Version(rt)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		conn.Close()
		return nil, newError(ErrCodeOpenFailed, rt, "open", fmt.Errorf("engine closed"))
	}
	e.handles[h.id] = h
	e.mu.Unlock()

	slog.Debug("store handle opened", "type", rt, "handle", h.id, "loop", owner != nil)
	return h, nil
}

// database returns rt's pool, opening and migrating it on first use.
func (e *Engine) database(rt record.Type) (*sql.DB, error) {
	if !typePattern.MatchString(string(rt)) {
		return nil, newError(ErrCodeOpenFailed, rt, "open", fmt.Errorf("invalid record type name %q", rt))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, newError(ErrCodeOpenFailed, rt, "open", fmt.Errorf("engine closed"))
	}
	if db, ok := e.dbs[rt]; ok {
		return db, nil
	}

	db, err := openDatabase(filepath.Join(e.cfg.Dir, string(rt)+".db"), e.cfg.BusyTimeout)
	if err != nil {
		return nil, newError(ErrCodeOpenFailed, rt, "open", err)
	}
	e.dbs[rt] = db
	return db, nil
}

// openDatabase creates or opens a SQLite database at path and applies the schema.
// Connection pragmas go in the DSN so every pooled connection gets them.
func openDatabase(path string, busy time.Duration) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(busy.Milliseconds()))
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + params.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// applySchema creates the records table if it doesn't exist.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Version is a logical clock per type, bumped by every commit that mutated it.
func (e *Engine) Version(rt record.Type) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.versions[rt]
}

// OpenHandles returns how many handles are currently open.
func (e *Engine) OpenHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Close closes every open handle and database.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	handles := make([]*Handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		if err := h.Close(); err != nil {
			slog.Warn("store handle close failed", "type", h.rt, "handle", h.id, "error", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for rt, db := range e.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", rt, err)
		}
	}
	e.dbs = map[record.Type]*sql.DB{}
	return firstErr
}

func (e *Engine) forget(h *Handle) {
	e.mu.Lock()
	delete(e.handles, h.id)
	e.mu.Unlock()
}

func (e *Engine) addWatcher(l *Live) {
	e.mu.Lock()
	defer e.mu.Unlock()
	byID, ok := e.watchers[l.h.rt]
	if !ok {
		byID = make(map[string]*Live)
		e.watchers[l.h.rt] = byID
	}
	byID[l.id] = l
}

func (e *Engine) removeWatcher(l *Live) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if byID, ok := e.watchers[l.h.rt]; ok {
		delete(byID, l.id)
		if len(byID) == 0 {
			delete(e.watchers, l.h.rt)
		}
	}
}

// changed bumps rt's version and schedules a re-query of every live result
// on its owner loop.
func (e *Engine) changed(rt record.Type) {
	e.mu.Lock()
	e.versions[rt]++
	e.mu.Unlock()
	e.Rescan(rt)
}

// Rescan re-runs every live result of rt without bumping its version. Use
// it when another process may have written rt's database.
func (e *Engine) Rescan(rt record.Type) {
	e.mu.Lock()
	lives := make([]*Live, 0, len(e.watchers[rt]))
	for _, l := range e.watchers[rt] {
		lives = append(lives, l)
	}
	e.mu.Unlock()

	for _, l := range lives {
		l.schedule()
	}
}
