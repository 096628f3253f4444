package callpath_test

import (
	"testing"

	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/stretchr/testify/require"
)

func frames() []callpath.Frame {
	return []callpath.Frame{
		{FileName: "train.py", FunctionName: "step", FunctionFirstLineno: 10, Lineno: 42},
		{FileName: "model.py", FunctionName: "forward", FunctionFirstLineno: 100, Lineno: 133},
	}
}

func TestSumDeterministic(t *testing.T) {
	require.Equal(t, callpath.Sum(frames()), callpath.Sum(frames()))
}

func TestSumDistinguishesOrder(t *testing.T) {
	f := frames()
	reversed := []callpath.Frame{f[1], f[0]}
	require.NotEqual(t, callpath.Sum(f), callpath.Sum(reversed))
}

func TestSumDistinguishesLineno(t *testing.T) {
	a := frames()
	b := frames()
	b[0].Lineno++
	require.NotEqual(t, callpath.Sum(a), callpath.Sum(b))
}

func TestNilSetAllowsEverything(t *testing.T) {
	var s *callpath.Set
	require.True(t, s.Allow(callpath.Sum(frames())))
}

func TestSetExcludesHash(t *testing.T) {
	h := callpath.Sum(frames())
	s := callpath.NewSet(h)
	require.False(t, s.Allow(h))

	other := callpath.Sum(frames()[:1])
	require.True(t, s.Allow(other))
}

func TestSetExcludeAddsAfterConstruction(t *testing.T) {
	h := callpath.Sum(frames())
	s := callpath.NewSet()
	require.True(t, s.Allow(h))
	s.Exclude(h)
	require.False(t, s.Allow(h))
}
