package recorder

import (
	"database/sql"
	"sync"
	"time"
)

// finalize runs the five-step tick (§4.4) in one transaction. When flushAll
// is set, step 3/4's time_leave filter is dropped and every remaining
// main.call_pts row is copied regardless of settlement; this is only used
// on the final shutdown pass. Inert (no-op) when the store has no stage1
// namespace (direct commit mode).
func (r *Recorder) finalize(tCut int64, flushAll bool) error {
	if !r.store.Staged() {
		return nil
	}

	tx, err := r.store.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lastFinalize, err := lastFinalizeMark(tx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO stage1.proc_ids(proc_id, proc_name, time_defined)
		 SELECT proc_id, proc_name, time_defined FROM main.proc_ids
		 WHERE time_defined > ?
		 ON CONFLICT DO NOTHING`,
		lastFinalize,
	); err != nil {
		return err
	}

	if flushAll {
		if _, err := tx.Exec(
			`INSERT INTO stage1.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave)
			 SELECT caller_id, callee_id, trace_id, time_enter, time_leave FROM main.call_pts
			 WHERE true
			 ON CONFLICT DO NOTHING`,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM main.call_pts`); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(
			`INSERT INTO stage1.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave)
			 SELECT caller_id, callee_id, trace_id, time_enter, time_leave FROM main.call_pts
			 WHERE time_leave IS NOT NULL AND time_leave < ?
			 ON CONFLICT DO NOTHING`,
			tCut,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`DELETE FROM main.call_pts WHERE time_leave IS NOT NULL AND time_leave < ?`,
			tCut,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func lastFinalizeMark(tx *sql.Tx) (int64, error) {
	row := tx.QueryRow(`
		SELECT MAX(x) FROM (
			SELECT MAX(time_defined) AS x FROM stage1.proc_ids
			UNION ALL
			SELECT MAX(time_leave) AS x FROM stage1.call_pts
			UNION ALL
			SELECT 0 AS x
		)`)
	var mark sql.NullInt64
	if err := row.Scan(&mark); err != nil {
		return 0, err
	}
	if !mark.Valid {
		return 0, nil
	}
	return mark.Int64, nil
}

// Finalizer drives a periodic finalize tick on the recorder's actor. One
// instance per recorder; the timer is cancellable idempotently via Stop.
type Finalizer struct {
	recorder *Recorder
	interval time.Duration
	now      func() int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFinalizer builds a finalizer that ticks every interval. now defaults to
// the wall clock in microseconds; tests may override it.
func NewFinalizer(r *Recorder, interval time.Duration, now func() int64) *Finalizer {
	if now == nil {
		now = func() int64 { return time.Now().UnixMicro() }
	}
	return &Finalizer{recorder: r, interval: interval, now: now, stop: make(chan struct{})}
}

// Start begins the periodic tick loop in every commit mode. For commit modes
// without a stage1 namespace the loop still ticks, but each tick's finalize
// is a no-op.
func (f *Finalizer) Start() {
	f.wg.Add(1)
	go f.loop()
}

// Stop cancels the periodic timer idempotently. It does not itself run a
// final flush; callers that need the shutdown semantics should call
// FinalizeFinal after Stop.
func (f *Finalizer) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	f.wg.Wait()
}

func (f *Finalizer) loop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.tick()
		case <-f.stop:
			return
		}
	}
}

func (f *Finalizer) tick() {
	f.recorder.submitSync(command{kind: opFinalize, tCut: f.now()})
}

// Tick runs one finalize pass synchronously, outside the periodic loop.
// Used by the fork pre-hook (§4.5 step 2: "finalize once, synchronously").
func (f *Finalizer) Tick() {
	f.tick()
}

// FinalizeFinal runs the shutdown sequence: one ordinary finalize followed
// by the flush-remaining-unsettled pass (§4.4). Call after Stop.
func (f *Finalizer) FinalizeFinal() {
	f.recorder.submitSync(command{kind: opFinalize, tCut: f.now()})
	f.recorder.submitSync(command{kind: opFinalize, flushAll: true})
}
