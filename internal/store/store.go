// Package store owns the embedded relational store: schema, commit-mode
// wiring, and the main/stage1 dual-namespace model reached through a single
// *sql.DB handle.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/flightaware/turtles"
)

// CommitMode selects where main lives and whether stage1 exists at all.
type CommitMode string

const (
	// CommitStaged keeps main in memory and stage1 on disk; the finalizer
	// moves settled rows from one to the other.
	CommitStaged CommitMode = "staged"
	// CommitDirect backs main directly by the on-disk file; stage1 is not
	// attached and the finalizer is inert.
	CommitDirect CommitMode = "direct"
)

// ParseCommitMode validates a commitMode option value per §6.
func ParseCommitMode(s string) (CommitMode, error) {
	switch CommitMode(s) {
	case CommitStaged:
		return CommitStaged, nil
	case CommitDirect:
		return CommitDirect, nil
	default:
		return "", turtles.NewError("parse_commit_mode", turtles.CodeConfig, fmt.Sprintf("invalid commitMode %q", s))
	}
}

// DurablePath computes the deterministic on-disk filename for a pid.
func DurablePath(dbPath, dbPrefix string, pid int) string {
	return filepath.Join(dbPath, fmt.Sprintf("%s-%d.db", dbPrefix, pid))
}

// Store wraps the sql.DB handle and knows which namespaces are live.
type Store struct {
	DB         *sql.DB
	Mode       CommitMode
	DurableFile string
	staged     bool
}

// Open creates (or reopens) the store for the given commit mode and pid.
// In staged mode, main is an in-memory database and stage1 is ATTACHed at
// durableFile. In direct mode, main is opened directly against durableFile
// and there is no stage1.
func Open(mode CommitMode, dbPath, dbPrefix string, pid int) (*Store, error) {
	durableFile := DurablePath(dbPath, dbPrefix, pid)

	var dsn string
	switch mode {
	case CommitStaged:
		dsn = "file::memory:?cache=shared"
	case CommitDirect:
		dsn = durableFile
	default:
		return nil, turtles.NewError("store_open", turtles.CodeConfig, fmt.Sprintf("invalid commit mode %q", mode))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, turtles.WrapError("store_open", turtles.CodeStoreOpen, err)
	}
	// The in-memory main namespace must survive across connections pulled
	// from the pool, so cap it at one.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db, Mode: mode, DurableFile: durableFile, staged: mode == CommitStaged}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if s.staged {
		if _, err := s.DB.Exec(fmt.Sprintf(`ATTACH DATABASE %s AS stage1`, quoteLiteral(s.DurableFile))); err != nil {
			return turtles.WrapError("store_attach", turtles.CodeStoreOpen, err)
		}
	}

	if _, err := s.DB.Exec(schemaSQL("main")); err != nil {
		return turtles.WrapError("store_schema_main", turtles.CodeStoreOpen, err)
	}
	if s.staged {
		if _, err := s.DB.Exec(schemaSQL("stage1")); err != nil {
			return turtles.WrapError("store_schema_stage1", turtles.CodeStoreOpen, err)
		}
	}
	return nil
}

// Staged reports whether this store has a separate stage1 namespace.
func (s *Store) Staged() bool {
	return s.staged
}

// Close detaches stage1 (if attached) and closes the handle.
func (s *Store) Close() error {
	if s.staged {
		_, _ = s.DB.Exec(`DETACH DATABASE stage1`)
	}
	return s.DB.Close()
}

func quoteLiteral(s string) string {
	return "'" + escapeSingleQuotes(s) + "'"
}

func escapeSingleQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
