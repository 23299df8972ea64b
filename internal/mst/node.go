// Package mst implements the GHS distributed minimum-spanning-tree engine
// (§4.7-§4.11): per-node fragment state, the five-phase barrier controller,
// and the MOE-search/merge/termination/summarize message handlers, all
// running on top of the kmachine transport.
package mst

import "github.com/flightaware/turtles/internal/kmachine"

// NodeState is a node's position in one round of the MOE search, per §3's
// "Dynamic keyed records -> tagged variants" design note.
type NodeState int

const (
	Idle NodeState = iota
	WaitMOE
	DoneMOE
	Merge
)

func (s NodeState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case WaitMOE:
		return "WAIT_MOE"
	case DoneMOE:
		return "DONE_MOE"
	case Merge:
		return "MERGE"
	default:
		return "UNKNOWN"
	}
}

// Node is the MST state owned by exactly one worker for exactly one procId
// (§3). parent/children/root hold procIds, never references; resolution is
// by lookup in the owning worker's node table (§9, "cyclic references").
type Node struct {
	ProcId   int64
	ProcName string

	Neighbors map[int64]int64 // edge weights; one-directional when BuildGraph runs directed

	OuterEdges []int64 // unvisited candidates, ordered by descending weight
	InnerEdges []int64 // confirmed intra-fragment

	Root     int64
	Parent   int64
	Children []int64

	MOE kmachine.Edge

	Awaiting int
	State    NodeState
}

// newNode builds a singleton-fragment node: its own root and parent, no
// children, and the degenerate MOE (procId, procId, 0) that any real
// outgoing edge dominates (§4.8).
func newNode(procId int64, procName string, neighbors map[int64]int64) *Node {
	n := &Node{
		ProcId:    procId,
		ProcName:  procName,
		Neighbors: neighbors,
		Root:      procId,
		Parent:    procId,
		State:     Idle,
		MOE:       kmachine.Edge{U: procId, V: procId, Weight: 0},
	}
	for neighbor := range neighbors {
		n.OuterEdges = append(n.OuterEdges, neighbor)
	}
	return n
}

func removeInt64(xs []int64, v int64) []int64 {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
