package mst

import (
	"fmt"
	"sort"
	"strings"
)

// summaryLine renders one phase-4 report line (§4.11).
func summaryLine(root, parent, weight, procId int64, procName string) string {
	return fmt.Sprintf("%d %d %d %d %s", root, parent, weight, procId, procName)
}

// Cluster is one connected component of the call graph: all procs sharing
// a fragment root at MST termination (§4.11, GLOSSARY "Bale").
type Cluster struct {
	Root  int64
	Procs []ClusterProc
}

// ClusterProc is one node's membership record within a Cluster.
type ClusterProc struct {
	ProcId   int64
	ProcName string
	Parent   int64
	Weight   int64
}

// ParseSummaryLines groups raw phase-4 lines (as produced by every worker's
// emitSummary, and gathered by Run) into clusters keyed by root,
// for the cluster CLI's report (§6).
func ParseSummaryLines(lines []string) []Cluster {
	byRoot := map[int64]*Cluster{}
	var order []int64

	for _, line := range lines {
		var root, parent, weight, procId int64
		var procName string
		fields := strings.SplitN(line, " ", 5)
		if len(fields) != 5 {
			continue
		}
		fmt.Sscan(fields[0], &root)
		fmt.Sscan(fields[1], &parent)
		fmt.Sscan(fields[2], &weight)
		fmt.Sscan(fields[3], &procId)
		procName = fields[4]

		c, ok := byRoot[root]
		if !ok {
			c = &Cluster{Root: root}
			byRoot[root] = c
			order = append(order, root)
		}
		c.Procs = append(c.Procs, ClusterProc{ProcId: procId, ProcName: procName, Parent: parent, Weight: weight})
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	clusters := make([]Cluster, 0, len(order))
	for _, root := range order {
		c := byRoot[root]
		sort.Slice(c.Procs, func(i, j int) bool { return c.Procs[i].ProcId < c.Procs[j].ProcId })
		clusters = append(clusters, *c)
	}
	return clusters
}
