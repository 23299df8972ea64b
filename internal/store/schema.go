package store

import "fmt"

// schemaSQL returns the full DDL for one namespace (main or stage1): the two
// tables, their index, and the three computed views, as one executable
// script. Every CREATE is IF NOT EXISTS so reopening an existing file is
// idempotent.
func schemaSQL(ns string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s.proc_ids (
	proc_id      INTEGER NOT NULL UNIQUE,
	proc_name    TEXT    NOT NULL UNIQUE,
	time_defined INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS %[1]s.call_pts (
	caller_id  INTEGER NOT NULL,
	callee_id  INTEGER NOT NULL,
	trace_id   INTEGER NOT NULL,
	time_enter INTEGER NOT NULL,
	time_leave INTEGER
);

CREATE INDEX IF NOT EXISTS %[1]s.idx_call_pts_caller_callee
	ON call_pts(caller_id, callee_id);

CREATE UNIQUE INDEX IF NOT EXISTS %[1]s.idx_call_pts_unique
	ON call_pts(caller_id, callee_id, trace_id, time_enter);

CREATE VIEW IF NOT EXISTS %[1]s.calls_by_caller_callee AS
	SELECT
		COALESCE(callerp.proc_name, '') AS caller_name,
		calleep.proc_name               AS callee_name,
		COUNT(*)                        AS calls,
		SUM(c.time_leave - c.time_enter)   AS total_exec_micros,
		AVG(c.time_leave - c.time_enter)   AS avg_exec_micros
	FROM %[1]s.call_pts c
	JOIN %[1]s.proc_ids calleep ON calleep.proc_id = c.callee_id
	LEFT JOIN %[1]s.proc_ids callerp ON callerp.proc_id = c.caller_id
	WHERE c.time_leave IS NOT NULL
	GROUP BY caller_name, callee_name
	ORDER BY total_exec_micros DESC;

CREATE VIEW IF NOT EXISTS %[1]s.calls_by_callee AS
	SELECT
		calleep.proc_name                AS callee_name,
		COUNT(*)                         AS calls,
		SUM(c.time_leave - c.time_enter)    AS total_exec_micros,
		AVG(c.time_leave - c.time_enter)    AS avg_exec_micros
	FROM %[1]s.call_pts c
	JOIN %[1]s.proc_ids calleep ON calleep.proc_id = c.callee_id
	WHERE c.time_leave IS NOT NULL
	GROUP BY callee_name
	ORDER BY total_exec_micros DESC;

CREATE VIEW IF NOT EXISTS %[1]s.unused_procs AS
	SELECT p.proc_id, p.proc_name, p.time_defined
	FROM %[1]s.proc_ids p
	WHERE NOT EXISTS (
		SELECT 1 FROM %[1]s.call_pts c
		WHERE c.callee_id = p.proc_id AND c.time_leave IS NOT NULL
	);
`, ns)
}
