package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flightaware/turtles"
	"github.com/flightaware/turtles/internal/store"
)

func TestExtractBlocksMatchesConcreteScenario(t *testing.T) {
	argv := strings.Fields("-i x +TURTLES -enabled -TURTLES -o y")
	residual, tokens := ExtractBlocks(argv)

	require.Equal(t, "-i x -o y", strings.Join(residual, " "))
	require.Equal(t, "-enabled", strings.Join(tokens, " "))
}

func TestExtractBlocksConcatenatesMultipleBlocks(t *testing.T) {
	argv := strings.Fields("+TURTLES -enabled -TURTLES -i x +TURTLES -debug -TURTLES")
	residual, tokens := ExtractBlocks(argv)

	require.Equal(t, "-i x", strings.Join(residual, " "))
	require.Equal(t, []string{"-enabled", "-debug"}, tokens)
}

func TestExtractBlocksWithNoBlockLeavesArgvUntouched(t *testing.T) {
	argv := []string{"-i", "x", "-o", "y"}
	residual, tokens := ExtractBlocks(argv)

	require.Equal(t, argv, residual)
	require.Empty(t, tokens)
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultOptions(), opts)
}

func TestParseOptionsEnabledAndDebugAreBareFlags(t *testing.T) {
	opts, err := ParseOptions([]string{"-enabled", "-debug"})
	require.NoError(t, err)
	require.True(t, opts.Enabled)
	require.True(t, opts.Debug)
}

func TestParseOptionsOverridesEveryKnob(t *testing.T) {
	opts, err := ParseOptions([]string{
		"-enabled",
		"-commitMode=direct",
		"-intervalMillis=50",
		"-dbPath=/tmp/turtles",
		"-dbPrefix=custom",
		"-scheduleMode=ev",
	})
	require.NoError(t, err)
	require.Equal(t, store.CommitDirect, opts.CommitMode)
	require.Equal(t, 50, opts.IntervalMillis)
	require.Equal(t, "/tmp/turtles", opts.DbPath)
	require.Equal(t, "custom", opts.DbPrefix)
	require.Equal(t, "ev", opts.ScheduleMode)
}

func TestParseOptionsInvalidCommitModeIsConfigError(t *testing.T) {
	_, err := ParseOptions([]string{"-commitMode=bogus"})
	require.Error(t, err)
	require.True(t, turtles.IsCode(err, turtles.CodeConfig))
}

func TestParseOptionsUnknownOptionFailsParsing(t *testing.T) {
	_, err := ParseOptions([]string{"-notreal"})
	require.Error(t, err)
	require.True(t, turtles.IsCode(err, turtles.CodeConfig))
}

func TestParseBlockEndToEnd(t *testing.T) {
	argv := strings.Fields("-i x +TURTLES -enabled -commitMode=direct -TURTLES -o y")
	residual, opts, err := ParseBlock(argv)
	require.NoError(t, err)
	require.Equal(t, "-i x -o y", strings.Join(residual, " "))
	require.True(t, opts.Enabled)
	require.Equal(t, store.CommitDirect, opts.CommitMode)
}
