package query

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/kpstk/pkg/callgraph"
	"github.com/danpilch/kpstk/pkg/diff"
	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/trace"
)

// load parses kp-format text; blocks are given leaf first as on disk.
func load(t *testing.T, name, input string) *profile.Profile {
	t.Helper()
	p, err := profile.Read(context.Background(), name, strings.NewReader(input), trace.DefaultOptions(), nil)
	require.NoError(t, err)
	return p
}

const before = `!
work
main
5
!
`

const after = `!
work
main
8
!
`

// base: total 10; main 6, work 6 (leaf 4, calls memcpy 2), idle 4
const base = `!
work+0x10
main
4
!
memcpy+0x8
work+0x24
main
2
!
idle
4
!
`

// head: work got hotter, idle disappeared, parse appeared
const head = `!
work+0x10
main
12
!
memcpy+0x8
work+0x10
main
4
!
parse
main
4
!
`

func keys(res *Result) []string {
	out := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		out[i] = r.Key
	}
	return out
}

func TestNewProfileCount(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrProfileCount)

	p := load(t, "a", before)
	_, err = New(p, p, p)
	assert.ErrorIs(t, err, ErrProfileCount)
}

func TestEndToEndEqualShares(t *testing.T) {
	q, err := New(load(t, "before", before), load(t, "after", after))
	require.NoError(t, err)
	require.True(t, q.Diff())

	res, err := q.Inclusive(0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	for _, r := range res.Rows {
		assert.Equal(t, 0.0, r.Delta, r.Key)
		assert.Equal(t, diff.SeverityNone, r.Severity)
	}
	assert.Equal(t, []string{"before", "after"}, res.Names)
	assert.Equal(t, []int64{5, 8}, res.Totals)
}

func TestResultJSONColumnsFollowMode(t *testing.T) {
	q, err := New(load(t, "before", before), load(t, "after", after))
	require.NoError(t, err)
	res, err := q.Inclusive(1)
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var got struct {
		Kind Kind             `json:"kind"`
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, KindInclusive, got.Kind)
	require.Len(t, got.Rows, 1)
	row := got.Rows[0]
	// An unchanged share still reports its delta.
	assert.Equal(t, 0.0, row["delta"])
	assert.Equal(t, "none", row["severity"])
	assert.Contains(t, row, "left")
	assert.NotContains(t, row, "share")
	assert.NotContains(t, row, "exclusive")

	single, err := New(load(t, "before", before))
	require.NoError(t, err)
	res, err = single.Inclusive(1)
	require.NoError(t, err)
	data, err = json.Marshal(res)
	require.NoError(t, err)
	var rows struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows.Rows, 1)
	row = rows.Rows[0]
	assert.Contains(t, row, "share")
	assert.NotContains(t, row, "delta")
	assert.NotContains(t, row, "left")
	assert.NotContains(t, row, "right")
}

func TestSingleInclusiveExclusive(t *testing.T) {
	q, err := New(load(t, "base", base))
	require.NoError(t, err)

	res, err := q.Inclusive(0)
	require.NoError(t, err)
	assert.False(t, res.Diff)
	assert.Equal(t, []string{"main", "work", "idle", "memcpy"}, keys(res))
	assert.Equal(t, int64(6), res.Rows[1].Share.Weight)
	assert.InDelta(t, 60.0, res.Rows[1].Share.Percent, 1e-9)

	res, err = q.Exclusive(2)
	require.NoError(t, err)
	// idle and work tie at 4; key order breaks the tie.
	assert.Equal(t, []string{"idle", "work"}, keys(res))
}

func TestDiffInclusive(t *testing.T) {
	q, err := New(load(t, "base", base), load(t, "head", head))
	require.NoError(t, err)

	res, err := q.Inclusive(0)
	require.NoError(t, err)
	require.True(t, res.Diff)

	byKey := map[string]Row{}
	for _, r := range res.Rows {
		byKey[r.Key] = r
	}
	// work: 6/10 -> 16/20
	assert.InDelta(t, 20.0, byKey["work"].Delta, 1e-9)
	assert.Equal(t, diff.SeverityRegress, byKey["work"].Severity)
	assert.InDelta(t, 60.0, byKey["work"].Left.Percent, 1e-9)
	assert.InDelta(t, 80.0, byKey["work"].Right.Percent, 1e-9)
	// idle only in base
	assert.InDelta(t, -40.0, byKey["idle"].Delta, 1e-9)
	assert.True(t, byKey["idle"].Left.Present)
	assert.False(t, byKey["idle"].Right.Present)
	// parse only in head
	assert.InDelta(t, 20.0, byKey["parse"].Delta, 1e-9)
	assert.False(t, byKey["parse"].Left.Present)

	// Ranked by delta descending, ties by key.
	assert.Equal(t, []string{"main", "parse", "work", "memcpy", "idle"}, keys(res))
}

func TestDiffMapsAreCached(t *testing.T) {
	q, err := New(load(t, "base", base), load(t, "head", head))
	require.NoError(t, err)

	_, err = q.Inclusive(3)
	require.NoError(t, err)
	_, err = q.Inclusive(1)
	require.NoError(t, err)
	_, err = q.Exclusive(0)
	require.NoError(t, err)
	assert.Equal(t, 2, q.diffCalls)
}

func TestUnknownFunctionDoesNotTouchCache(t *testing.T) {
	q, err := New(load(t, "base", base), load(t, "head", head))
	require.NoError(t, err)

	_, err = q.Instructions("nope", 10)
	assert.ErrorIs(t, err, callgraph.ErrUnknownFunction)
	_, err = q.Callers("nope", 1, 10)
	assert.ErrorIs(t, err, callgraph.ErrUnknownFunction)
	_, err = q.Callees("nope", 10)
	assert.ErrorIs(t, err, callgraph.ErrUnknownFunction)

	assert.Zero(t, q.diffCalls)
	assert.Nil(t, q.instDiff)
}

func TestInstructions(t *testing.T) {
	q, err := New(load(t, "base", base))
	require.NoError(t, err)

	res, err := q.Instructions("work", 0)
	require.NoError(t, err)
	assert.Equal(t, "work", res.Function)
	assert.Equal(t, []string{"work+0x10", "work+0x24"}, keys(res))
	assert.Equal(t, int64(4), res.Rows[0].Share.Weight)

	res, err = q.Instructions("work", 1)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestDiffInstructions(t *testing.T) {
	q, err := New(load(t, "base", base), load(t, "head", head))
	require.NoError(t, err)

	res, err := q.Instructions("work", 0)
	require.NoError(t, err)
	// work+0x10: 40% -> 80%; work+0x24: 20% -> 0%
	require.Equal(t, []string{"work+0x10", "work+0x24"}, keys(res))
	assert.InDelta(t, 40.0, res.Rows[0].Delta, 1e-9)
	assert.InDelta(t, -20.0, res.Rows[1].Delta, 1e-9)

	// idle only exists in base; still a known function in diff mode.
	res, err = q.Instructions("idle", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, keys(res))
}

func TestCombined(t *testing.T) {
	q, err := New(load(t, "base", base))
	require.NoError(t, err)

	res, err := q.Combined(OrderInclusive, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "work", "idle", "memcpy"}, keys(res))
	main := res.Rows[0]
	assert.Equal(t, int64(6), main.Share.Weight)
	assert.False(t, main.Exclusive.Present)
	assert.Empty(t, res.Note)

	res, err = q.Combined(OrderExclusive, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle", "work", "memcpy"}, keys(res))
	assert.Equal(t, int64(6), res.Rows[1].Share.Weight)
	assert.Equal(t, int64(4), res.Rows[1].Exclusive.Weight)
}

func TestCombinedInDiffModeUsesFirstProfile(t *testing.T) {
	q, err := New(load(t, "base", base), load(t, "head", head))
	require.NoError(t, err)

	res, err := q.Combined(OrderInclusive, 0)
	require.NoError(t, err)
	assert.False(t, res.Diff)
	assert.Equal(t, []string{"base"}, res.Names)
	assert.NotEmpty(t, res.Note)
	assert.NotContains(t, keys(res), "parse")
}

func TestCallersAndCallees(t *testing.T) {
	q, err := New(load(t, "base", base))
	require.NoError(t, err)

	res, err := q.Callers("memcpy", 2, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "main+work+memcpy", res.Rows[0].Key)
	assert.Equal(t, []string{"main", "work", "memcpy"}, res.Rows[0].Path)
	assert.Equal(t, 2, res.Depth)

	res, err = q.Callees("work", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"top_of_stack", "work+memcpy"}, keys(res))
	require.Len(t, res.Targets, 1)
	assert.Equal(t, int64(6), res.Targets[0].Inclusive.Weight)
	assert.Equal(t, int64(4), res.Targets[0].Exclusive.Weight)
	assert.False(t, res.Recursive)
}

func TestDiffCallers(t *testing.T) {
	q, err := New(load(t, "base", base), load(t, "head", head))
	require.NoError(t, err)

	res, err := q.Callees("main", 0)
	require.NoError(t, err)
	byKey := map[string]Row{}
	for _, r := range res.Rows {
		byKey[r.Key] = r
	}
	// main+work: 60% -> 80%, main+parse: 0 -> 20%
	assert.InDelta(t, 20.0, byKey["main+work"].Delta, 1e-9)
	assert.InDelta(t, 20.0, byKey["main+parse"].Delta, 1e-9)
	assert.Equal(t, []string{"main", "parse"}, byKey["main+parse"].Path)
	require.Len(t, res.Targets, 2)

	// parse is unknown in base but present in head.
	res, err = q.Callers("parse", 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "main+parse", res.Rows[0].Key)
	assert.False(t, res.Rows[0].Left.Present)
	assert.InDelta(t, 20.0, res.Rows[0].Right.Percent, 1e-9)
}

func TestRecursionNotice(t *testing.T) {
	q, err := New(load(t, "rec", "!\nfoo\nbar\nfoo\nmain\n10\n!\n"))
	require.NoError(t, err)

	res, err := q.Callers("foo", 1, 0)
	require.NoError(t, err)
	assert.True(t, res.Recursive)
	assert.Equal(t, int64(20), res.Rows[0].Share.Weight)

	res, err = q.Callers("main", 1, 0)
	require.NoError(t, err)
	assert.False(t, res.Recursive)
	assert.Equal(t, "bottom_of_stack+main", res.Rows[0].Key)
}

func TestDiffZeroTotal(t *testing.T) {
	empty := load(t, "empty", "")
	q, err := New(empty, load(t, "base", base))
	require.NoError(t, err)

	_, err = q.Inclusive(0)
	assert.ErrorIs(t, err, diff.ErrInvalidProfile)
	_, err = q.Callers("work", 1, 0)
	assert.ErrorIs(t, err, diff.ErrInvalidProfile)
}
