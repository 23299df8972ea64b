package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommitModeValid(t *testing.T) {
	m, err := ParseCommitMode("staged")
	require.NoError(t, err)
	require.Equal(t, CommitStaged, m)

	m, err = ParseCommitMode("direct")
	require.NoError(t, err)
	require.Equal(t, CommitDirect, m)
}

func TestParseCommitModeInvalid(t *testing.T) {
	_, err := ParseCommitMode("lazy")
	require.Error(t, err)
}

func TestDurablePath(t *testing.T) {
	require.Equal(t, filepath.Join("/tmp", "turtles-123.db"), DurablePath("/tmp", "turtles", 123))
}

// TestDirectModeSingleCall exercises concrete scenario 3: a direct-mode
// store with one settled call resolves through calls_by_caller_callee.
func TestDirectModeSingleCall(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(CommitDirect, dir, "turtles", os.Getpid())
	require.NoError(t, err)
	defer s.Close()
	require.False(t, s.Staged())

	_, err = s.DB.Exec(`INSERT INTO proc_ids(proc_id, proc_name, time_defined) VALUES (1, '::one', 100)`)
	require.NoError(t, err)
	_, err = s.DB.Exec(`INSERT INTO call_pts(caller_id, callee_id, trace_id, time_enter, time_leave) VALUES (0, 1, 0, 200, 300)`)
	require.NoError(t, err)

	var calls int
	row := s.DB.QueryRow(`SELECT calls FROM calls_by_caller_callee WHERE caller_name = '' AND callee_name = '::one'`)
	require.NoError(t, row.Scan(&calls))
	require.Equal(t, 1, calls)
}

func TestStagedModeAttachesStage1(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(CommitStaged, dir, "turtles", os.Getpid())
	require.NoError(t, err)
	defer s.Close()
	require.True(t, s.Staged())

	_, err = s.DB.Exec(`INSERT INTO main.proc_ids(proc_id, proc_name, time_defined) VALUES (1, '::one', 100)`)
	require.NoError(t, err)

	var name string
	row := s.DB.QueryRow(`SELECT proc_name FROM main.proc_ids WHERE proc_id = 1`)
	require.NoError(t, row.Scan(&name))
	require.Equal(t, "::one", name)

	row = s.DB.QueryRow(`SELECT COUNT(*) FROM stage1.proc_ids`)
	var n int
	require.NoError(t, row.Scan(&n))
	require.Equal(t, 0, n)
}

func TestUnusedProcsView(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(CommitDirect, dir, "turtles", os.Getpid())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB.Exec(`INSERT INTO proc_ids(proc_id, proc_name, time_defined) VALUES (1, '::unreached', 100)`)
	require.NoError(t, err)

	var name string
	row := s.DB.QueryRow(`SELECT proc_name FROM unused_procs WHERE proc_id = 1`)
	require.NoError(t, row.Scan(&name))
	require.Equal(t, "::unreached", name)
}
