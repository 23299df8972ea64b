// Package trace is the public trace intake surface (§6): the runtime
// enable/disable option block parsed from host argv, and the Enter/Leave
// hooks that feed the recorder.
package trace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flightaware/turtles"
	"github.com/flightaware/turtles/internal/store"
)

const (
	blockStart = "+TURTLES"
	blockEnd   = "-TURTLES"
)

// Options are the runtime enable/disable knobs recognized inside a
// +TURTLES ... -TURTLES argv block (§6).
type Options struct {
	Enabled        bool
	CommitMode     store.CommitMode
	IntervalMillis int
	DbPath         string
	DbPrefix       string
	ScheduleMode   string
	Debug          bool
}

// DefaultOptions returns the documented defaults. Enabled is false: no
// tracing happens unless the host argv explicitly sets it.
func DefaultOptions() Options {
	return Options{
		Enabled:        false,
		CommitMode:     store.CommitStaged,
		IntervalMillis: 30000,
		DbPath:         "./",
		DbPrefix:       "turtles",
		ScheduleMode:   "mt",
		Debug:          false,
	}
}

// ExtractBlocks pulls every +TURTLES ... -TURTLES bracketed block out of
// argv, returning the residual argv with the blocks (markers included)
// removed, and the concatenated inner tokens of every block found
// (concrete scenario 2: multiple bracketed blocks concatenate).
func ExtractBlocks(argv []string) (residual []string, blockTokens []string) {
	inBlock := false
	for _, tok := range argv {
		switch {
		case tok == blockStart:
			inBlock = true
		case tok == blockEnd:
			inBlock = false
		case inBlock:
			blockTokens = append(blockTokens, tok)
		default:
			residual = append(residual, tok)
		}
	}
	return residual, blockTokens
}

// ParseOptions applies each `-name` or `-name=value` token over
// DefaultOptions. Invalid commitMode is fatal (§6); an unrecognized option
// name fails parsing entirely, rather than being silently skipped.
func ParseOptions(tokens []string) (Options, error) {
	opts := DefaultOptions()
	for _, tok := range tokens {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(tok, "-"), "=")
		switch name {
		case "enabled":
			opts.Enabled = true
		case "debug":
			opts.Debug = true
		case "commitMode":
			if !hasValue {
				return Options{}, turtles.NewError("parse_options", turtles.CodeConfig, "commitMode requires a value")
			}
			mode, err := store.ParseCommitMode(value)
			if err != nil {
				return Options{}, err
			}
			opts.CommitMode = mode
		case "intervalMillis":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Options{}, turtles.NewError("parse_options", turtles.CodeConfig, fmt.Sprintf("invalid intervalMillis %q", value))
			}
			opts.IntervalMillis = n
		case "dbPath":
			opts.DbPath = value
		case "dbPrefix":
			opts.DbPrefix = value
		case "scheduleMode":
			if value != "mt" && value != "ev" {
				return Options{}, turtles.NewError("parse_options", turtles.CodeConfig, fmt.Sprintf("invalid scheduleMode %q", value))
			}
			opts.ScheduleMode = value
		default:
			return Options{}, turtles.NewError("parse_options", turtles.CodeConfig, fmt.Sprintf("unknown option %q", tok))
		}
	}
	return opts, nil
}

// ParseBlock is the end-to-end convenience path: extract the bracketed
// blocks from argv, then parse their concatenated tokens into Options.
func ParseBlock(argv []string) (residual []string, opts Options, err error) {
	residual, tokens := ExtractBlocks(argv)
	opts, err = ParseOptions(tokens)
	return residual, opts, err
}
