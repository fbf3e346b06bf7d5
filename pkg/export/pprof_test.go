package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	pprof "github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/trace"
)

const input = `!
memcpy+0x8
work+0x10
main
3
!
work+0x24
main
5
!
idle
4
!
`

func load(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Read(context.Background(), "test.kp", strings.NewReader(input), trace.DefaultOptions(), nil)
	require.NoError(t, err)
	return p
}

func leafNames(s *pprof.Sample) []string {
	names := make([]string, len(s.Location))
	for i, loc := range s.Location {
		names[i] = loc.Line[0].Function.Name
	}
	return names
}

func TestPprof(t *testing.T) {
	out, err := Pprof(load(t))
	require.NoError(t, err)

	require.Len(t, out.SampleType, 1)
	assert.Equal(t, "samples", out.SampleType[0].Type)
	assert.Len(t, out.Function, 4)
	assert.Len(t, out.Sample, 3)

	var total int64
	stacks := map[string]int64{}
	for _, s := range out.Sample {
		total += s.Value[0]
		stacks[strings.Join(leafNames(s), ";")] = s.Value[0]
	}
	assert.Equal(t, int64(12), total)
	assert.Equal(t, int64(3), stacks["memcpy;work;main"])
	assert.Equal(t, int64(5), stacks["work;main"])
	assert.Equal(t, int64(4), stacks["idle"])
}

func TestWritePprofParses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePprof(&buf, load(t)))

	// Gzip magic.
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0x1f, 0x8b}))

	parsed, err := pprof.Parse(&buf)
	require.NoError(t, err)
	assert.Len(t, parsed.Sample, 3)
	assert.Contains(t, parsed.Comments, "source: test.kp")
}
