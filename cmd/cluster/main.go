// Command cluster reads a turtles durable store and reports the call
// graph's connected components under a call-count cutoff (§6).
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	_ "modernc.org/sqlite"

	"github.com/flightaware/turtles/internal/mst"
	"github.com/flightaware/turtles/internal/tlog"
)

var cli struct {
	DBFile     string `arg:"" name:"db-file" help:"Durable store file (<dbPath>/<dbPrefix>-<pid>.db)."`
	Cutoff     int64  `name:"cutoff" default:"1" help:"Minimum call count for an edge to count toward clustering."`
	Undirected bool   `name:"undirected" help:"Treat caller->callee edges as undirected, summing both directions."`
	Verbosity  int    `name:"verbosity" default:"1" help:"0=error, 1=info, 2=debug."`
	Machines   int    `name:"machines" default:"4" help:"Number of simulated GHS worker machines."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("cluster"),
		kong.Description("Partition a turtles call graph into connected components."),
	)

	logConfig := tlog.DefaultConfig()
	switch {
	case cli.Verbosity <= 0:
		logConfig.Level = tlog.LevelError
	case cli.Verbosity == 1:
		logConfig.Level = tlog.LevelInfo
	default:
		logConfig.Level = tlog.LevelDebug
	}
	logger := tlog.NewLogger(logConfig)

	if err := run(logger); err != nil {
		logger.Error("cluster failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *tlog.Logger) error {
	db, err := sql.Open("sqlite", cli.DBFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", cli.DBFile, err)
	}
	defer db.Close()

	// A durable file opened directly (outside the recorder's own process)
	// always exposes its content under sqlite's default "main" schema,
	// regardless of whether the writer had it ATTACHed as stage1 (§4.2).
	nodes, err := mst.BuildGraph(db, "main", cli.Cutoff, cli.Undirected)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	logger.Info("graph loaded", "procs", len(nodes), "cutoff", cli.Cutoff, "undirected", cli.Undirected)

	lines := mst.Run(cli.Machines, nodes, logger)
	clusters := mst.ParseSummaryLines(lines)

	for _, c := range clusters {
		fmt.Printf("%d {", c.Root)
		for _, p := range c.Procs {
			fmt.Printf(" %s", p.ProcName)
		}
		fmt.Printf(" }\n")
	}
	return nil
}
