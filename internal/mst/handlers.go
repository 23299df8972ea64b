package mst

import "github.com/flightaware/turtles/internal/kmachine"

// handleFindMOE is the down-phase of MOE search (§4.8). A leaf starts its
// own local test at once; a node with children only forwards the search,
// and handleFoundMOE starts its local test once every child has reported.
// awaiting counts both the child reports and the local test.
//
// moe is reset to the degenerate (self, self, 0) value here, at the start
// of each round, not just once at node creation: an edge already moved to
// innerEdges in a prior round must never be re-proposed as this round's
// winner just because test_moe finds outerEdges empty and reports whatever
// moe last held (§9, inferred resolution of an open question about
// found_moe's behavior across multiple rounds).
func (m *Machine) handleFindMOE(procId int64) {
	n := m.nodes[procId]
	if n == nil || n.State != Idle {
		return
	}
	n.State = WaitMOE
	n.Awaiting = len(n.Children) + 1
	n.MOE = kmachine.Edge{U: procId, V: procId, Weight: 0}

	if len(n.Children) == 0 {
		m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.TestMOE, ProcId: procId})
		return
	}
	for _, child := range n.Children {
		m.wc.Send(kmachine.MachineOf(child, m.wc.Machines), kmachine.Message{Kind: kmachine.FindMOE, ProcId: child})
	}
}

// handleTestMOE runs the node's own local candidate test (§4.8). An empty
// outerEdges means this node has nothing left to offer; that result feeds
// back into its own convergecast slot (the "+1" from find_moe), not its
// parent's, so it self-delivers found_moe.
func (m *Machine) handleTestMOE(procId int64) {
	n := m.nodes[procId]
	if n == nil || n.State != WaitMOE {
		return
	}
	if len(n.OuterEdges) == 0 {
		m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.FoundMOE, ProcId: procId, Edge: n.MOE})
		return
	}
	candidate := n.OuterEdges[0]
	m.wc.Send(kmachine.MachineOf(candidate, m.wc.Machines), kmachine.Message{Kind: kmachine.ReqRoot, ProcId: candidate, Asker: procId})
}

// handleReqRoot answers a root query: whoever asked learns this node's
// current fragment root. No state guard here: any node, in any state, can
// truthfully answer "what is your root".
func (m *Machine) handleReqRoot(procId int64, asker int64) {
	n := m.nodes[procId]
	if n == nil {
		return
	}
	m.wc.Send(kmachine.MachineOf(asker, m.wc.Machines), kmachine.Message{
		Kind:          kmachine.RspRoot,
		ProcId:        asker,
		Responder:     procId,
		ResponderRoot: n.Root,
	})
}

// handleRspRoot resolves a root query at the asker (§4.8): same-root
// candidates are internal and get reclassified, cross-root candidates are a
// genuine outgoing edge and become the comparison subject.
func (m *Machine) handleRspRoot(procId int64, responder int64, responderRoot int64) {
	n := m.nodes[procId]
	if n == nil || n.State != WaitMOE || len(n.OuterEdges) == 0 {
		return
	}
	head := n.OuterEdges[0]
	if responderRoot == n.Root {
		n.OuterEdges = n.OuterEdges[1:]
		n.InnerEdges = append(n.InnerEdges, head)
		m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.TestMOE, ProcId: procId})
		return
	}
	weight := n.Neighbors[head]
	m.wc.Send(m.wc.Myself, kmachine.Message{
		Kind:   kmachine.FoundMOE,
		ProcId: procId,
		Edge:   kmachine.Edge{U: procId, V: head, Weight: weight},
	})
}

// handleFoundMOE is the MOE convergecast (§4.8): every reporting child (and
// the node's own local test) decrements awaiting; the best real candidate
// wins on strict >, ties favor the existing MOE.
func (m *Machine) handleFoundMOE(procId int64, edge kmachine.Edge) {
	n := m.nodes[procId]
	if n == nil || n.State != WaitMOE {
		return
	}
	n.Awaiting--
	if edge.U != edge.V && edge.Weight > n.MOE.Weight {
		n.MOE = edge
	}

	switch n.Awaiting {
	case 1:
		m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.TestMOE, ProcId: procId})
	case 0:
		n.State = DoneMOE
		if n.Parent == procId {
			m.notifyMOELocal(n, n.MOE)
		} else {
			m.wc.Send(kmachine.MachineOf(n.Parent, m.wc.Machines), kmachine.Message{Kind: kmachine.FoundMOE, ProcId: n.Parent, Edge: n.MOE})
		}
	}
}

// handleNotifyMOE is the downcast that propagates the winning MOE to every
// fragment member (§4.8), ending phase 1 for each node it reaches.
func (m *Machine) handleNotifyMOE(procId int64, moe kmachine.Edge) {
	n := m.nodes[procId]
	if n == nil || n.State != DoneMOE {
		return
	}
	m.notifyMOELocal(n, moe)
}

func (m *Machine) notifyMOELocal(n *Node, moe kmachine.Edge) {
	n.Root = moe.U
	n.MOE = moe
	n.State = Merge

	m.procsInPhase--
	if m.procsInPhase == 0 {
		m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
	}
	for _, child := range n.Children {
		m.wc.Send(kmachine.MachineOf(child, m.wc.Machines), kmachine.Message{Kind: kmachine.NotifyMOE, ProcId: child, Edge: moe})
	}
}

// handleMerge is phase 2's root command (§4.9). By the time it runs, every
// node already carries the winning MOE and state MERGE from phase 1's
// downcast, so the command cascades through the whole fragment the same
// way find_moe does, letting each node independently check whether it
// originated the MOE.
//
// A node that did not originate this round's MOE (including every node
// whose moe is still the degenerate self-edge, meaning its fragment has no
// outgoing edge left at all) has nothing to combine and closes out phase 2
// for itself right here. A node that did originate waits for new_root
// (§4.9) to close it out instead, since reciprocal merges are expected to
// fold that node's completion into the promoted root's downward cascade.
// Without this split, a fully-converged graph (no node ever originates
// again) would never decrement procsInPhase and the phase would hang.
func (m *Machine) handleMerge(procId int64) {
	n := m.nodes[procId]
	if n == nil || n.State != Merge {
		return
	}
	if n.MOE.U == procId && n.MOE.U != n.MOE.V {
		m.wc.Send(kmachine.MachineOf(n.MOE.V, m.wc.Machines), kmachine.Message{Kind: kmachine.ReqCombine, ProcId: n.MOE.V, CombineSender: procId})
	} else {
		n.State = Idle
		m.procsInPhase--
		if m.procsInPhase == 0 {
			m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
		}
	}
	for _, child := range n.Children {
		m.wc.Send(kmachine.MachineOf(child, m.wc.Machines), kmachine.Message{Kind: kmachine.Merge, ProcId: child})
	}
}

// handleReqCombine absorbs sender as a child, and promotes self to a fresh
// fragment root when the merge is reciprocal (§4.9).
func (m *Machine) handleReqCombine(procId int64, sender int64) {
	n := m.nodes[procId]
	if n == nil {
		return
	}
	n.Children = append(n.Children, sender)

	if n.MOE.U == procId && sender == n.MOE.V && procId > sender {
		m.wc.Send(m.wc.Myself, kmachine.Message{Kind: kmachine.NewRoot, ProcId: procId, NewRoot: procId, NewParent: procId})
	}
}

// handleNewRoot propagates a fresh fragment identity downward (§4.9) and
// ends phase 2 for every node it reaches.
func (m *Machine) handleNewRoot(procId int64, newRoot int64, newParent int64) {
	n := m.nodes[procId]
	if n == nil {
		return
	}
	n.Root = newRoot
	if n.Parent != newParent && n.Parent != procId {
		n.Children = append(n.Children, n.Parent)
	}
	n.Children = removeInt64(n.Children, newParent)
	n.Parent = newParent

	for _, child := range n.Children {
		m.wc.Send(kmachine.MachineOf(child, m.wc.Machines), kmachine.Message{Kind: kmachine.NewRoot, ProcId: child, NewRoot: newRoot, NewParent: procId})
	}

	m.procsInPhase--
	if m.procsInPhase == 0 {
		m.wc.Broadcast(kmachine.Message{Kind: kmachine.PhaseDone})
	}
	n.State = Idle
}

// handleReqActive answers the termination check with this worker's own
// active-node count (§4.10).
func (m *Machine) handleReqActive(from int) {
	count := 0
	for _, n := range m.nodes {
		if len(n.OuterEdges) > 0 {
			count++
		}
	}
	m.wc.Send(from, kmachine.Message{Kind: kmachine.RspActive, ActiveCount: count})
}

// handleRspActive accumulates one peer's active count; once every worker
// has answered (including self), this worker has everything it needs to
// decide the next phase on its own and advances directly, independent of
// every other worker's own req_active round.
func (m *Machine) handleRspActive(count int) {
	m.procsActive += count
	m.machinesInPhase--
	if m.machinesInPhase == 0 {
		m.advancePhase()
	}
}

// emitSummary renders phase 4's per-node report line (§4.11): root, parent,
// the edge weight from self to parent (0 at a fragment root), procId, and
// procName.
func (m *Machine) emitSummary() {
	for _, n := range m.nodes {
		weight := int64(0)
		if n.Parent != n.ProcId {
			weight = n.Neighbors[n.Parent]
		}
		m.lines = append(m.lines, summaryLine(n.Root, n.Parent, weight, n.ProcId, n.ProcName))
	}
}
