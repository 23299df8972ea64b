package mst

import (
	"sort"

	"github.com/flightaware/turtles/internal/kmachine"
	"github.com/flightaware/turtles/internal/tlog"
)

// Phase enumerates the five controller phases (§4.7).
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseFindMOE
	PhaseMerge
	PhaseReqActive
	PhaseSummarize
)

// Machine is the per-worker state described in §3's "Machine state": the
// set of owned nodes, the current phase, and the two barrier counters.
// Everything here is private to one kmachine worker; no field is ever read
// or written by another goroutine (§5).
type Machine struct {
	wc     *kmachine.WorkerContext
	nodes  map[int64]*Node
	logger *tlog.Logger

	phase           Phase
	machinesInPhase int
	procsInPhase    int
	procsActive     int

	lines []string // accumulated summarize-phase output, owned by this worker
}

// NewMachine builds the per-worker state for the nodes this worker owns.
func NewMachine(owned []*Node, logger *tlog.Logger) *Machine {
	nodes := make(map[int64]*Node, len(owned))
	for _, n := range owned {
		nodes[n.ProcId] = n
	}
	if logger != nil {
		logger = logger.With("component", "mst")
	}
	return &Machine{nodes: nodes, logger: logger}
}

// Handler adapts Machine to kmachine.Handler. The WorkerContext arrives on
// every call, not just the first, since a worker's handler closure is built
// before its goroutine starts receiving.
func (m *Machine) Handler() kmachine.Handler {
	return func(wc *kmachine.WorkerContext, from int, msg kmachine.Message) {
		m.wc = wc
		m.dispatch(from, msg)
	}
}

// ownedRoots returns this worker's owned fragment tree-tops: nodes that are
// their own parent. This is purely structural (spanning-tree position), not
// based on the Root field, because notify_moe (§4.8) updates Root to the
// *next* round's identity before new_root (§4.9) has reshaped the tree to
// match, so during phase 2 a node can be a tree-top with Root already
// pointing elsewhere.
func (m *Machine) ownedRoots() []int64 {
	var roots []int64
	for id, n := range m.nodes {
		if n.Parent == id {
			roots = append(roots, id)
		}
	}
	return roots
}

// phaseInit implements §4.7's barrier protocol, specialized per phase for
// the root command each phase names. Every worker runs phaseInit
// independently and symmetrically; there is no single leader.
func (m *Machine) phaseInit(p Phase) {
	m.phase = p
	m.procsInPhase = len(m.nodes)
	m.machinesInPhase = m.wc.Machines

	switch p {
	case PhasePrepare:
		// Every node starts as its own fragment root, so "issue the
		// phase-root command to each owned root" is every owned node.
		if len(m.nodes) == 0 {
			m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
			return
		}
		for id := range m.nodes {
			m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.Prepare, ProcId: id})
		}

	case PhaseFindMOE:
		roots := m.ownedRoots()
		if len(roots) == 0 {
			m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
			return
		}
		for _, id := range roots {
			m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.FindMOE, ProcId: id})
		}

	case PhaseMerge:
		roots := m.ownedRoots()
		if len(roots) == 0 {
			m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
			return
		}
		for _, id := range roots {
			m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.Merge, ProcId: id})
		}

	case PhaseReqActive:
		// Termination check is machine-scoped, not fragment-scoped (§4.10):
		// every worker asks every worker, regardless of which owns a root.
		m.procsActive = 0
		m.wc.Broadcast(kmachine.Message{Kind: kmachine.ReqActive})

	case PhaseSummarize:
		m.emitSummary()
		m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
	}
}

// dispatch routes one delivered message to its handler. State-guard
// failures inside the handlers are skipped silently per §7 ("node state
// violation... this is normal because retries and reorderings are
// possible"); a message of unknown kind is logged with the machine id and
// skipped, not fatal.
func (m *Machine) dispatch(from int, msg kmachine.Message) {
	switch msg.Kind {
	case kmachine.Start:
		m.phaseInit(PhasePrepare)
	case kmachine.Prepare:
		m.handlePrepare(msg.ProcId)
	case kmachine.FindMOE:
		m.handleFindMOE(msg.ProcId)
	case kmachine.TestMOE:
		m.handleTestMOE(msg.ProcId)
	case kmachine.ReqRoot:
		m.handleReqRoot(msg.ProcId, msg.Asker)
	case kmachine.RspRoot:
		m.handleRspRoot(msg.ProcId, msg.Responder, msg.ResponderRoot)
	case kmachine.FoundMOE:
		m.handleFoundMOE(msg.ProcId, msg.Edge)
	case kmachine.NotifyMOE:
		m.handleNotifyMOE(msg.ProcId, msg.Edge)
	case kmachine.Merge:
		m.handleMerge(msg.ProcId)
	case kmachine.ReqCombine:
		m.handleReqCombine(msg.ProcId, msg.CombineSender)
	case kmachine.NewRoot:
		m.handleNewRoot(msg.ProcId, msg.NewRoot, msg.NewParent)
	case kmachine.ReqActive:
		m.handleReqActive(from)
	case kmachine.RspActive:
		m.handleRspActive(msg.ActiveCount)
	case kmachine.PhaseDone:
		m.handlePhaseDone()
	default:
		if m.logger != nil {
			m.logger.Warn("invalid message", "machine", m.wc.Myself, "kind", msg.Kind.String())
		}
	}
}

// handlePhaseDone is the generic barrier decrement used by phases 0, 1, 2,
// and 4. Phase 3 (req_active) tracks its own completion via rsp_active
// counts instead (§4.10) and advances itself directly, never broadcasting
// or receiving phase_done.
func (m *Machine) handlePhaseDone() {
	m.machinesInPhase--
	if m.machinesInPhase == 0 {
		m.advancePhase()
	}
}

func (m *Machine) advancePhase() {
	switch m.phase {
	case PhasePrepare:
		m.phaseInit(PhaseFindMOE)
	case PhaseFindMOE:
		m.phaseInit(PhaseMerge)
	case PhaseMerge:
		m.phaseInit(PhaseReqActive)
	case PhaseReqActive:
		if m.procsActive > 0 {
			m.phaseInit(PhaseFindMOE)
		} else {
			m.phaseInit(PhaseSummarize)
		}
	case PhaseSummarize:
		m.wc.Broadcast(kmachine.Message{Kind: kmachine.Bye})
	}
}

// handlePrepare sorts outerEdges by descending weight (phase 0). Every node
// is its own root at this point, so this runs once per owned node with no
// cascade.
func (m *Machine) handlePrepare(procId int64) {
	n := m.nodes[procId]
	if n == nil {
		return
	}
	sort.SliceStable(n.OuterEdges, func(i, j int) bool {
		return n.Neighbors[n.OuterEdges[i]] > n.Neighbors[n.OuterEdges[j]]
	})
	m.procsInPhase--
	if m.procsInPhase == 0 {
		m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
	}
}

// Lines returns the summarize-phase output accumulated on this worker.
func (m *Machine) Lines() []string {
	return m.lines
}
