package repl_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/tether/internal/repl"
)

func TestFeedSingleLineTurnRunsImmediately(t *testing.T) {
	var out bytes.Buffer
	r := repl.New(&out)

	continuing, err := r.Feed("print 1 + 2")
	require.NoError(t, err)
	assert.False(t, continuing)
	assert.Equal(t, "3\n", out.String())
}

func TestFeedPersistsLocalsAcrossTurns(t *testing.T) {
	var out bytes.Buffer
	r := repl.New(&out)

	_, err := r.Feed("var x = 10")
	require.NoError(t, err)
	_, err = r.Feed("x += 5")
	require.NoError(t, err)
	_, err = r.Feed("print x")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out.String())
}

func TestFeedIncompleteTurnRequestsContinuation(t *testing.T) {
	var out bytes.Buffer
	r := repl.New(&out)

	continuing, err := r.Feed("if true {")
	require.NoError(t, err)
	assert.True(t, continuing)
	assert.Empty(t, out.String(), "an incomplete turn must not execute anything yet")

	continuing, err = r.Feed("print 1")
	require.NoError(t, err)
	assert.True(t, continuing)
	assert.Empty(t, out.String())

	continuing, err = r.Feed("}")
	require.NoError(t, err)
	assert.False(t, continuing)
	assert.Equal(t, "1\n", out.String())
}

// TestFeedIdempotence is the REPL idempotence property from §8: running a
// turn across several continuation lines must produce output identical to
// compiling the whole, already-complete turn in one shot.
func TestFeedIdempotence(t *testing.T) {
	var oneShot bytes.Buffer
	single := repl.New(&oneShot)
	_, err := single.Feed("if true { print 42 }")
	require.NoError(t, err)

	var piecewise bytes.Buffer
	multi := repl.New(&piecewise)
	_, err = multi.Feed("if true {")
	require.NoError(t, err)
	_, err = multi.Feed("print 42")
	require.NoError(t, err)
	_, err = multi.Feed("}")
	require.NoError(t, err)

	assert.Equal(t, oneShot.String(), piecewise.String())
}

func TestFeedInvalidTurnResetsBufferAndReportsError(t *testing.T) {
	var out bytes.Buffer
	r := repl.New(&out)

	continuing, err := r.Feed("print nope")
	require.Error(t, err)
	assert.False(t, continuing)
	assert.NotEmpty(t, r.LastSource())

	// A fresh, valid turn afterward must succeed: the failed turn did not
	// leave the compiler or machine in a corrupted state.
	_, err = r.Feed("print 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out.String())
}
