package mst

import (
	"github.com/flightaware/turtles/internal/kmachine"
	"github.com/flightaware/turtles/internal/tlog"
)

// Run partitions nodes across k simulated machines by machineOf(procId) =
// procId mod k (§4.6), drives the GHS engine to termination, and returns
// the raw phase-4 report lines gathered from every worker (§4.11).
//
// Ownership assignment happens once, up front, outside the workers
// themselves: nodes never migrate after that (§3).
func Run(k int, nodes map[int64]*Node, logger *tlog.Logger) []string {
	owned := make([][]*Node, k)
	for id, n := range nodes {
		w := kmachine.MachineOf(id, k)
		owned[w] = append(owned[w], n)
	}

	machines := make([]*Machine, k)
	sup := kmachine.NewSupervisor(k, func(myself int) kmachine.Handler {
		machines[myself] = NewMachine(owned[myself], logger)
		return machines[myself].Handler()
	})

	sup.Broadcast(kmachine.Message{Kind: kmachine.Start})
	sup.WaitUntilDone()

	var lines []string
	for _, m := range machines {
		lines = append(lines, m.Lines()...)
	}
	return lines
}
