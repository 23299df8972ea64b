package mst

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flightaware/turtles/internal/tlog"
)

func nodesFromEdges(edges map[[2]int64]int64) map[int64]*Node {
	neighbors := map[int64]map[int64]int64{}
	names := map[int64]bool{}
	for pair, w := range edges {
		a, b := pair[0], pair[1]
		names[a] = true
		names[b] = true
		if neighbors[a] == nil {
			neighbors[a] = map[int64]int64{}
		}
		if neighbors[b] == nil {
			neighbors[b] = map[int64]int64{}
		}
		neighbors[a][b] = w
		neighbors[b][a] = w
	}
	nodes := map[int64]*Node{}
	for id := range names {
		nodes[id] = newNode(id, "proc", neighbors[id])
	}
	return nodes
}

func rootsOf(t *testing.T, lines []string) map[int64][]int64 {
	t.Helper()
	clusters := ParseSummaryLines(lines)
	byRoot := map[int64][]int64{}
	for _, c := range clusters {
		for _, p := range c.Procs {
			byRoot[c.Root] = append(byRoot[c.Root], p.ProcId)
		}
	}
	return byRoot
}

func TestRunTwoNodesMergeIntoOneCluster(t *testing.T) {
	nodes := nodesFromEdges(map[[2]int64]int64{
		{1, 2}: 5,
	})

	lines := Run(1, nodes, tlog.NewLogger(tlog.DefaultConfig()))
	require.Len(t, lines, 2)

	clusters := ParseSummaryLines(lines)
	require.Len(t, clusters, 1)
	require.ElementsMatch(t, []int64{1, 2}, []int64{clusters[0].Procs[0].ProcId, clusters[0].Procs[1].ProcId})
}

func TestRunDisjointComponentsStaySeparate(t *testing.T) {
	nodes := nodesFromEdges(map[[2]int64]int64{
		{1, 2}: 5,
		{3, 4}: 7,
	})

	lines := Run(2, nodes, tlog.NewLogger(tlog.DefaultConfig()))
	clusters := ParseSummaryLines(lines)
	require.Len(t, clusters, 2)

	byRoot := rootsOf(t, lines)
	require.Len(t, byRoot, 2)
	for _, procs := range byRoot {
		require.Len(t, procs, 2)
	}
}

func TestRunConnectedPathMergesIntoOneCluster(t *testing.T) {
	// A 4-node path with distinct weights, spread across more machines than
	// nodes so routing exercises cross-machine delivery on every hop.
	nodes := nodesFromEdges(map[[2]int64]int64{
		{1, 2}: 3,
		{2, 3}: 9,
		{3, 4}: 1,
	})

	lines := Run(4, nodes, tlog.NewLogger(tlog.DefaultConfig()))
	require.Len(t, lines, 4)

	clusters := ParseSummaryLines(lines)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Procs, 4)
}

func TestRunSingleMachineMatchesMultiMachineClustering(t *testing.T) {
	edges := map[[2]int64]int64{
		{1, 2}: 3,
		{2, 3}: 9,
		{3, 4}: 1,
		{10, 11}: 4,
	}

	single := rootsOf(t, Run(1, nodesFromEdges(edges), tlog.NewLogger(tlog.DefaultConfig())))
	multi := rootsOf(t, Run(3, nodesFromEdges(edges), tlog.NewLogger(tlog.DefaultConfig())))

	require.Len(t, single, 2)
	require.Len(t, multi, 2)

	sizes := func(byRoot map[int64][]int64) []int {
		var out []int
		for _, procs := range byRoot {
			out = append(out, len(procs))
		}
		return out
	}
	require.ElementsMatch(t, sizes(single), sizes(multi))
}

func TestRunSingletonNodeIsItsOwnCluster(t *testing.T) {
	nodes := map[int64]*Node{
		1: newNode(1, "lonely", nil),
	}

	lines := Run(1, nodes, tlog.NewLogger(tlog.DefaultConfig()))
	require.Equal(t, []string{"1 1 0 1 lonely"}, lines)
}
