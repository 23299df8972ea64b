// Package forklifecycle implements the pre/post-fork dance (§4.5) that lets
// tracing survive a host process fork without a live recorder goroutine
// straddling the fork boundary.
//
// The fork syscall itself belongs to the host language runtime (out of
// scope, §1); this package only wraps the store/recorder/finalizer restart
// around it, the same way the teacher wraps raw syscalls directly in
// internal/queue/runner.go rather than going through a higher-level
// abstraction.
package forklifecycle

import (
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/flightaware/turtles"
	"github.com/flightaware/turtles/internal/recorder"
	"github.com/flightaware/turtles/internal/store"
	"github.com/flightaware/turtles/internal/tlog"
)

// Hooks owns the live store/recorder/finalizer triple and restarts it around
// a host-initiated fork.
type Hooks struct {
	mu sync.Mutex

	mode     store.CommitMode
	dbPath   string
	dbPrefix string
	interval time.Duration
	logger   *tlog.Logger

	pid       int // pid the live store is currently opened under
	store     *store.Store
	recorder  *recorder.Recorder
	finalizer *recorder.Finalizer
}

// New opens the initial store for the current pid and starts its recorder
// and finalizer.
func New(mode store.CommitMode, dbPath, dbPrefix string, interval time.Duration, logger *tlog.Logger) (*Hooks, error) {
	if logger == nil {
		logger = tlog.Default()
	}
	h := &Hooks{mode: mode, dbPath: dbPath, dbPrefix: dbPrefix, interval: interval, logger: logger.With("component", "forklifecycle")}
	if err := h.openAndStart(os.Getpid()); err != nil {
		return nil, err
	}
	return h, nil
}

// Store returns the currently live store. Changes identity across a fork.
func (h *Hooks) Store() *store.Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store
}

// Recorder returns the currently live recorder. Changes identity across a
// fork.
func (h *Hooks) Recorder() *recorder.Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recorder
}

func (h *Hooks) openAndStart(pid int) error {
	s, err := store.Open(h.mode, h.dbPath, h.dbPrefix, pid)
	if err != nil {
		return err
	}
	r := recorder.New(s, h.logger)
	r.Start()
	f := recorder.NewFinalizer(r, h.interval, nil)
	f.Start()

	h.pid = pid
	h.store = s
	h.recorder = r
	h.finalizer = f
	return nil
}

// PreFork stops the finalizer, runs one synchronous finalize, and closes the
// store. Call this immediately before the host's own fork() syscall.
func (h *Hooks) PreFork() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.finalizer.Stop()
	h.finalizer.Tick()
	h.recorder.Stop()
	if err := h.store.Close(); err != nil {
		h.logger.Error("fork prehook: close store failed", "err", err)
	}
}

// Shutdown runs the ordinary (non-fork) exit sequence (§4.4): stop the
// finalizer, run the final synchronous finalize-and-flush-remaining-unsettled
// pass, stop the recorder, and close the store. Unlike PreFork, nothing
// reopens afterward — Hooks is unusable once Shutdown returns. Call this from
// the host's normal exit path so unsettled rows survive an orderly shutdown
// rather than only crash-kill losing them.
func (h *Hooks) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.finalizer.Stop()
	h.finalizer.FinalizeFinal()
	h.recorder.Stop()
	if err := h.store.Close(); err != nil {
		h.logger.Error("shutdown: close store failed", "err", err)
	}
}

// PostFork runs in both parent and child immediately after the host's fork
// call returns. result follows classic Unix fork() semantics: 0 identifies
// the child, a positive value (the child's pid, as observed by the parent)
// identifies the parent side.
func (h *Hooks) PostFork(result int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if result == 0 {
		return h.postForkChild()
	}
	return h.postForkParent()
}

// getpid is swapped out in tests, which cannot perform a real fork and so
// need a synthetic child pid distinct from the parent's.
var getpid = unix.Getpid

func (h *Hooks) postForkChild() error {
	childPid := getpid()
	oldFile := store.DurablePath(h.dbPath, h.dbPrefix, h.pid)
	newFile := store.DurablePath(h.dbPath, h.dbPrefix, childPid)

	if err := copyFile(oldFile, newFile); err != nil {
		return turtles.WrapError("fork_posthook_child", turtles.CodeFork, err)
	}
	return h.openAndStart(childPid)
}

func (h *Hooks) postForkParent() error {
	return h.openAndStart(h.pid)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
