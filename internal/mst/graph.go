package mst

import (
	"database/sql"
	"fmt"

	"github.com/flightaware/turtles"
)

type edgeKey struct{ a, b int64 }

// BuildGraph reads the durable store's settled calls and builds one Node
// per defined procedure, wiring neighbor weights from call counts across
// caller/callee pairs (§6, cluster CLI's `--cutoff`/`--undirected`). The
// `callerId = 0` sentinel ("top-level / no caller", §3) never becomes a
// graph node since it has no ProcRecord.
func BuildGraph(db *sql.DB, ns string, cutoff int64, undirected bool) (map[int64]*Node, error) {
	names, err := loadProcNames(db, ns)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(fmt.Sprintf(`
		SELECT caller_id, callee_id, COUNT(*)
		FROM %[1]s.call_pts
		WHERE time_leave IS NOT NULL AND caller_id != 0
		GROUP BY caller_id, callee_id
	`, ns))
	if err != nil {
		return nil, turtles.WrapError("build_graph", turtles.CodeStoreOpen, err)
	}
	defer rows.Close()

	weights := map[edgeKey]int64{}
	for rows.Next() {
		var caller, callee, calls int64
		if err := rows.Scan(&caller, &callee, &calls); err != nil {
			return nil, turtles.WrapError("build_graph", turtles.CodeStoreOpen, err)
		}
		if calls < cutoff {
			continue
		}
		addWeight(weights, caller, callee, calls, undirected)
	}
	if err := rows.Err(); err != nil {
		return nil, turtles.WrapError("build_graph", turtles.CodeStoreOpen, err)
	}

	neighbors := map[int64]map[int64]int64{}
	for key, w := range weights {
		if neighbors[key.a] == nil {
			neighbors[key.a] = map[int64]int64{}
		}
		neighbors[key.a][key.b] = w
		if undirected {
			if neighbors[key.b] == nil {
				neighbors[key.b] = map[int64]int64{}
			}
			neighbors[key.b][key.a] = w
		}
	}

	nodes := make(map[int64]*Node, len(names))
	for id, name := range names {
		nodes[id] = newNode(id, name, neighbors[id])
	}
	return nodes, nil
}

func addWeight(weights map[edgeKey]int64, caller, callee, calls int64, undirected bool) {
	key := edgeKey{caller, callee}
	if undirected && callee < caller {
		key = edgeKey{callee, caller}
	}
	weights[key] += calls
}

func loadProcNames(db *sql.DB, ns string) (map[int64]string, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT proc_id, proc_name FROM %[1]s.proc_ids`, ns))
	if err != nil {
		return nil, turtles.WrapError("load_proc_names", turtles.CodeStoreOpen, err)
	}
	defer rows.Close()

	names := map[int64]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, turtles.WrapError("load_proc_names", turtles.CodeStoreOpen, err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
