// Package buildstore gives the Module Loader (§4.8) a persistent, relational
// backing for the driver-side per-file record: "uptodate, functions,
// structs, GSinstance, GFinstance" plus the content hash and compiled flag
// the producer/consumer poll of §4.8 step 2 / §5 synchronizes on.
//
// The teacher persists provider/session/stage records with
// gorm.io/gorm over a sqlite dialector (db/sqlite.go, models/models.go);
// this package keeps that shape — one gorm.Model-style row per tracked
// file, JSON columns for the payload that doesn't need to be queried
// relationally — generalized from "transformation staging" to "compiled
// file bookkeeping". It uses the pure-Go glebarez sqlite dialector rather
// than the teacher's cgo one so the compiler driver never needs a C
// toolchain to persist its build state.
package buildstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileRecord is the driver-side per-file record §4.8/§6 describe: whether
// the file's compiled output is current, the symbols it produced, and the
// generic instances it memoized, plus the relational columns the Module
// Loader's busy-wait (§5) and import resolution (§4.8 step 1) need.
type FileRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Path      string `gorm:"type:varchar(1024);uniqueIndex;not null"`
	Hash      string `gorm:"type:varchar(64)"` // sha256 of source content
	Compiled  bool   `gorm:"index"`            // set once emission finishes
	UpToDate  bool   // false forces recompilation even if Compiled is set

	// Functions/Structs/GSInstance/GFInstance mirror the driver payload
	// named in §6: {uptodate, functions, structs, GSinstance, GFinstance}.
	// Stored as JSON so the shape can evolve without a migration per field,
	// the way the teacher's Stage.TargetQuery/ScopeAST columns do.
	Functions   datatypes.JSON `gorm:"type:jsonb"`
	Structs     datatypes.JSON `gorm:"type:jsonb"`
	GSInstance  datatypes.JSON `gorm:"type:jsonb"` // generic-struct instances
	GFInstance  datatypes.JSON `gorm:"type:jsonb"` // generic-function instances

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the column family stable regardless of package rename,
// matching the teacher's models package convention of an explicit name.
func (FileRecord) TableName() string { return "file_records" }

// Store wraps the gorm handle with the narrow operations the Module
// Loader needs: find-or-create a file's record, poll its compiled flag,
// and mark it compiled with the symbols it produced.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite-backed build store at path, creating the
// parent directory and running the schema migration the way the
// teacher's db.Connect does.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("buildstore: creating directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("buildstore: connecting: %w", err)
	}
	if err := db.AutoMigrate(&FileRecord{}); err != nil {
		return nil, fmt.Errorf("buildstore: migrating: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-process, non-persistent store, useful for tests
// and for single-shot compiles that never need cross-process handshake.
func OpenMemory() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("buildstore: connecting: %w", err)
	}
	if err := db.AutoMigrate(&FileRecord{}); err != nil {
		return nil, fmt.Errorf("buildstore: migrating: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindOrCreate registers path in the shared file-tree (§4.8 step 1),
// returning its existing record if one was already tracked.
func (s *Store) FindOrCreate(path string) (*FileRecord, error) {
	var rec FileRecord
	err := s.db.Where(FileRecord{Path: path}).FirstOrCreate(&rec, FileRecord{Path: path}).Error
	if err != nil {
		return nil, fmt.Errorf("buildstore: find-or-create %s: %w", path, err)
	}
	return &rec, nil
}

// Refresh reloads one record by path, used by the busy-wait poll.
func (s *Store) Refresh(rec *FileRecord) error {
	return s.db.Where(FileRecord{Path: rec.Path}).First(rec).Error
}

// MarkCompiling resets a record to not-yet-compiled before a file's
// emission starts, invalidating any stale symbols from a previous run.
func (s *Store) MarkCompiling(path, hash string) (*FileRecord, error) {
	rec, err := s.FindOrCreate(path)
	if err != nil {
		return nil, err
	}
	rec.Hash = hash
	rec.Compiled = false
	rec.UpToDate = false
	if err := s.db.Save(rec).Error; err != nil {
		return nil, fmt.Errorf("buildstore: marking %s compiling: %w", path, err)
	}
	return rec, nil
}

// MarkCompiled records the functions/structs/generic-instance payload and
// flips the compiled flag, unblocking any sibling file's busy-wait.
func (s *Store) MarkCompiled(path string, functions, structs, gsInstance, gfInstance []byte) error {
	rec, err := s.FindOrCreate(path)
	if err != nil {
		return err
	}
	rec.Compiled = true
	rec.UpToDate = true
	rec.Functions = datatypes.JSON(functions)
	rec.Structs = datatypes.JSON(structs)
	rec.GSInstance = datatypes.JSON(gsInstance)
	rec.GFInstance = datatypes.JSON(gfInstance)
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("buildstore: marking %s compiled: %w", path, err)
	}
	return nil
}
