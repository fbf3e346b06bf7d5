package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/trace"
)

type stack struct {
	weight int64
	frames []string
}

func newProfile(stacks ...stack) *profile.Profile {
	b := profile.NewBuilder("test")
	for _, st := range stacks {
		s := trace.Sample{Weight: st.weight}
		for _, f := range st.frames {
			s.Frames = append(s.Frames, trace.Normalize(f))
		}
		b.Add(s)
	}
	return b.Build()
}

func TestCallers(t *testing.T) {
	p := newProfile(stack{4, []string{"main", "foo", "bar"}})

	res, err := Callers(p, "bar", 1)
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"foo+bar": 4}, res.Weights)
	assert.Equal(t, []trace.FunctionID{"foo", "bar"}, res.Paths["foo+bar"])
	assert.False(t, res.Recursive())

	res, err = Callers(p, "main", 1)
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"bottom_of_stack+main": 4}, res.Weights)
}

func TestCallersDepth(t *testing.T) {
	p := newProfile(
		stack{3, []string{"main", "a", "b", "target"}},
		stack{2, []string{"main", "c", "target", "leaf"}},
		stack{1, []string{"x", "target"}},
	)

	res, err := Callers(p, "target", 2)
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{
		"a+b+target":    3,
		"main+c+target": 2,
		"x+target":      1,
	}, res.Weights)

	res, err = Callers(p, "target", 10)
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{
		"main+a+b+target": 3,
		"main+c+target":   2,
		"x+target":        1,
	}, res.Weights)

	// Non-positive depth falls back to the direct caller.
	res, err = Callers(p, "target", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Weights["b+target"])
}

func TestCallees(t *testing.T) {
	p := newProfile(
		stack{4, []string{"main", "foo", "bar"}},
		stack{6, []string{"main", "foo"}},
		stack{1, []string{"main", "foo", "baz", "bar"}},
	)

	res, err := Callees(p, "foo")
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{
		"foo+bar":      4,
		"foo+baz":      1,
		"top_of_stack": 6,
	}, res.Weights)

	res, err = Callees(p, "bar")
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"top_of_stack": 5}, res.Weights)
	assert.Equal(t, []trace.FunctionID{TopOfStack}, res.Paths["top_of_stack"])

	// Exclusive weight equals the top_of_stack weight without recursion.
	ex, _ := p.Exclusive("foo")
	res, err = Callees(p, "foo")
	require.NoError(t, err)
	assert.Equal(t, ex, res.Weights[PathKey(TopOfStack)])
}

func TestRecursionUsesFirstOccurrence(t *testing.T) {
	p := newProfile(
		stack{10, []string{"main", "foo", "bar", "foo"}},
		stack{1, []string{"main", "foo"}},
	)

	callers, err := Callers(p, "foo", 1)
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"main+foo": 21}, callers.Weights)
	assert.True(t, callers.Recursive())
	assert.Equal(t, 1, callers.RecursiveStacks)

	callees, err := Callees(p, "foo")
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"foo+bar": 20, "top_of_stack": 1}, callees.Weights)
	assert.True(t, callees.Recursive())

	// Caller weights agree with the amplified inclusive weight.
	incl, _ := p.Inclusive("foo")
	var sum int64
	for _, w := range callers.Weights {
		sum += w
	}
	assert.Equal(t, incl, sum)
}

func TestUnknownFunction(t *testing.T) {
	p := newProfile(stack{1, []string{"main"}})

	_, err := Callers(p, "nope", 1)
	assert.ErrorIs(t, err, ErrUnknownFunction)
	_, err = Callees(p, "nope")
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestSingleFrameStack(t *testing.T) {
	p := newProfile(stack{2, []string{"idle"}})

	callers, err := Callers(p, "idle", 3)
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"bottom_of_stack+idle": 2}, callers.Weights)

	callees, err := Callees(p, "idle")
	require.NoError(t, err)
	assert.Equal(t, map[PathKey]int64{"top_of_stack": 2}, callees.Weights)
}
