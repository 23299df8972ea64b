// Package recorder implements the single-writer actor that serializes all
// store mutations, and the periodic finalizer that rides the same actor.
//
// Modeled on an async, channel-fed, single-writer store, generalized here
// from "trace entries" to ProcRecord/CallRecord writes. Inserts are not
// batched: each add_proc/add_call/update_call is its own statement, and only
// a finalize runs inside a transaction.
package recorder

import (
	"sync"

	"github.com/flightaware/turtles"
	"github.com/flightaware/turtles/internal/store"
	"github.com/flightaware/turtles/internal/tlog"
)

type opKind int

const (
	opAddProc opKind = iota
	opAddCall
	opUpdateCall
	opFinalize
)

type command struct {
	kind opKind

	procId   int64
	procName string

	callerId, calleeId, traceId int64
	tEnter                      int64
	tLeave                      int64
	tLeaveSet                   bool

	tDefined int64
	tCut     int64
	flushAll bool

	done chan struct{}
}

// Recorder serializes add_proc/add_call/update_call/finalize through one
// goroutine. Submission is asynchronous fire-and-forget by default; pass a
// non-nil completion channel (via the Sync variants) to block until applied.
type Recorder struct {
	store  *store.Store
	logger *tlog.Logger
	cmds   chan command
	wg     sync.WaitGroup
}

// New creates a recorder bound to an already-open store.
func New(s *store.Store, logger *tlog.Logger) *Recorder {
	if logger == nil {
		logger = tlog.Default()
	}
	return &Recorder{
		store:  s,
		logger: logger.With("component", "recorder"),
		cmds:   make(chan command, 256),
	}
}

// Start launches the actor goroutine. Safe to call once.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop closes the submission queue and waits for the actor to drain it.
// Stop runs no finalize of its own; the shutdown flush-all-unsettled pass is
// Finalizer.FinalizeFinal, which must run before Stop.
func (r *Recorder) Stop() {
	close(r.cmds)
	r.wg.Wait()
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for cmd := range r.cmds {
		r.apply(cmd)
		if cmd.done != nil {
			close(cmd.done)
		}
	}
}

func (r *Recorder) apply(cmd command) {
	var err error
	switch cmd.kind {
	case opAddProc:
		err = r.addProc(cmd.procId, cmd.procName, cmd.tDefined)
	case opAddCall:
		err = r.addCall(cmd.callerId, cmd.calleeId, cmd.traceId, cmd.tEnter, cmd.tLeave, cmd.tLeaveSet)
	case opUpdateCall:
		err = r.updateCall(cmd.callerId, cmd.calleeId, cmd.traceId, cmd.tLeave)
	case opFinalize:
		err = r.finalize(cmd.tCut, cmd.flushAll)
	}
	if err != nil {
		code := turtles.CodeStoreWrite
		if cmd.kind == opFinalize {
			code = turtles.CodeFinalize
		}
		r.logger.Error("recorder operation failed", "op", cmd.kind, "code", code, "err", err)
	}
}

func (r *Recorder) addProc(procId int64, procName string, tDefined int64) error {
	_, err := r.store.DB.Exec(
		`INSERT INTO main.proc_ids(proc_id, proc_name, time_defined) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		procId, procName, tDefined,
	)
	return err
}

func (r *Recorder) addCall(callerId, calleeId, traceId, tEnter, tLeave int64, tLeaveSet bool) error {
	var leave interface{}
	if tLeaveSet {
		leave = tLeave
	}
	_, err := r.store.DB.Exec(
		`INSERT INTO main.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave) VALUES (?, ?, ?, ?, ?)`,
		callerId, calleeId, traceId, tEnter, leave,
	)
	return err
}

func (r *Recorder) updateCall(callerId, calleeId, traceId, tLeave int64) error {
	_, err := r.store.DB.Exec(
		`UPDATE main.call_pts SET time_leave = ?
		 WHERE caller_id = ? AND callee_id = ? AND trace_id = ? AND time_leave IS NULL`,
		tLeave, callerId, calleeId, traceId,
	)
	return err
}

// submit enqueues cmd; if done is non-nil, the caller should receive from it
// to block until the command has been applied.
func (r *Recorder) submit(cmd command) {
	r.cmds <- cmd
}

func (r *Recorder) submitSync(cmd command) {
	done := make(chan struct{})
	cmd.done = done
	r.cmds <- cmd
	<-done
}

// AddProc records a defined procedure. Conflicts on either unique key are
// silently ignored.
func (r *Recorder) AddProc(procId int64, procName string, tDefined int64) {
	r.submit(command{kind: opAddProc, procId: procId, procName: procName, tDefined: tDefined})
}

// AddCall records a call-site entry event, optionally already settled.
func (r *Recorder) AddCall(callerId, calleeId, traceId, tEnter int64, tLeave *int64) {
	cmd := command{kind: opAddCall, callerId: callerId, calleeId: calleeId, traceId: traceId, tEnter: tEnter}
	if tLeave != nil {
		cmd.tLeave = *tLeave
		cmd.tLeaveSet = true
	}
	r.submit(cmd)
}

// UpdateCall settles a previously-entered call. A missing or already-settled
// row is a no-op, never an error.
func (r *Recorder) UpdateCall(callerId, calleeId, traceId, tLeave int64) {
	r.submit(command{kind: opUpdateCall, callerId: callerId, calleeId: calleeId, traceId: traceId, tLeave: tLeave})
}

// UpdateCallSync blocks until the update has been applied by the actor.
func (r *Recorder) UpdateCallSync(callerId, calleeId, traceId, tLeave int64) {
	r.submitSync(command{kind: opUpdateCall, callerId: callerId, calleeId: calleeId, traceId: traceId, tLeave: tLeave})
}

// AddProcSync blocks until the insert has been applied by the actor.
func (r *Recorder) AddProcSync(procId int64, procName string, tDefined int64) {
	r.submitSync(command{kind: opAddProc, procId: procId, procName: procName, tDefined: tDefined})
}
