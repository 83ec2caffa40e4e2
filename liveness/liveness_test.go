// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package liveness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s48/regalloc/interval"
)

type rangesT = []interval.RangeT

func call(inputs []int, outputs []int) CallT {
	return CallT{Inputs: inputs, Outputs: outputs}
}

func analyze(t *testing.T, blocks ...BlockT) *ResultT {
	result, err := Analyze(&ProgramT{Blocks: blocks})
	require.NoError(t, err)
	return result
}

func TestStraightLine(t *testing.T) {
	require := require.New(t)

	// 0: v0 := ...   1: v1 := ...   2: use v1   3: use v0
	result := analyze(t, BlockT{Calls: []CallT{
		call(nil, []int{0}),
		call(nil, []int{1}),
		call([]int{1}, nil),
		call([]int{0}, nil),
	}})
	require.Equal([]int{0, 1}, result.Variables())
	require.Equal(rangesT{{Start: 1, End: 6}}, result.Interval(0).Ranges())
	require.Equal(rangesT{{Start: 3, End: 4}}, result.Interval(1).Ranges())
	require.Equal(interval.PositionT(6), result.Interval(0).End())
	require.Equal([]interval.PositionT{6}, result.Uses(0))
	require.Equal([]interval.PositionT{1}, result.Defs(0))
	require.Nil(result.Interval(7))
}

func TestUnusedDefinition(t *testing.T) {
	result := analyze(t, BlockT{Calls: []CallT{
		call(nil, []int{0}),
		call(nil, nil),
	}})
	require.Equal(t, rangesT{{Start: 1, End: 1}}, result.Interval(0).Ranges())
	require.Equal(t, interval.InvalidPosition, result.NextUse(0, 0))
}

func TestInputDiesAtOutput(t *testing.T) {
	// v1 := v0 + 1 lets v1 start right after v0 ends.
	result := analyze(t, BlockT{Calls: []CallT{
		call(nil, []int{0}),
		call([]int{0}, []int{1}),
		call([]int{1}, nil),
	}})
	v0 := result.Interval(0)
	v1 := result.Interval(1)
	require.Equal(t, rangesT{{Start: 1, End: 2}}, v0.Ranges())
	require.Equal(t, rangesT{{Start: 3, End: 4}}, v1.Ranges())
	require.False(t, v0.Intersects(v1))
}

func TestDiamond(t *testing.T) {
	require := require.New(t)

	result := analyze(t,
		BlockT{Calls: []CallT{call(nil, []int{0}), call([]int{0}, []int{1})}, Next: []int{1, 2}},
		BlockT{Calls: []CallT{call([]int{1}, []int{2})}, Next: []int{3}},
		BlockT{Calls: []CallT{call(nil, []int{3})}, Next: []int{3}},
		BlockT{Calls: []CallT{call([]int{0}, nil)}},
	)
	// v0 is live through both arms, whose ranges merge.
	require.Equal(rangesT{{Start: 1, End: 8}}, result.Interval(0).Ranges())
	require.Equal(rangesT{{Start: 3, End: 4}}, result.Interval(1).Ranges())
	require.Equal(rangesT{{Start: 5, End: 5}}, result.Interval(2).Ranges())
	require.Equal(rangesT{{Start: 7, End: 7}}, result.Interval(3).Ranges())

	require.Empty(result.LiveIn(0))
	require.Equal([]int{0, 1}, result.LiveIn(1))
	require.Equal([]int{0}, result.LiveIn(2))
	require.Equal([]int{0}, result.LiveIn(3))
	require.Equal(interval.PositionT(4), result.BlockStart(1))
	require.Equal(interval.PositionT(7), result.BlockEnd(2))
}

func TestLoop(t *testing.T) {
	require := require.New(t)

	// v2 is defined before the loop and used after it, so it is live
	// throughout the loop.  v0 is carried around the back edge.
	result := analyze(t,
		BlockT{Calls: []CallT{call(nil, []int{0, 2})}, Next: []int{1}},
		BlockT{Calls: []CallT{call([]int{0}, []int{1}), call([]int{1}, nil)}, Next: []int{1, 2}},
		BlockT{Calls: []CallT{call([]int{2}, nil)}},
	)
	require.Equal(rangesT{{Start: 1, End: 5}}, result.Interval(0).Ranges())
	require.Equal(rangesT{{Start: 3, End: 4}}, result.Interval(1).Ranges())
	require.Equal(rangesT{{Start: 1, End: 6}}, result.Interval(2).Ranges())
	require.Equal([]int{0, 2}, result.LiveIn(1))

	require.Equal(interval.PositionT(2), result.NextUse(0, 1))
	require.Equal(interval.InvalidPosition, result.NextUse(0, 2))
	require.Equal(interval.PositionT(6), result.NextUse(2, 1))
}

func TestGapBetweenBlocks(t *testing.T) {
	require := require.New(t)

	result := analyze(t,
		BlockT{Calls: []CallT{call(nil, []int{0})}, Next: []int{1, 2}},
		BlockT{Calls: []CallT{call(nil, []int{1})}},
		BlockT{Calls: []CallT{call([]int{0}, nil)}},
	)
	v0 := result.Interval(0)
	require.Equal(rangesT{{Start: 1, End: 1}, {Start: 4, End: 4}}, v0.Ranges())

	// Spill v0 right after its definition and reload it at its use.
	child := v0.Split(1, result.NextUse(0, 1))
	require.Equal(rangesT{{Start: 1, End: 1}}, v0.Ranges())
	require.Equal(interval.PositionT(4), v0.End())
	require.Equal(rangesT{{Start: 4, End: 4}}, child.Ranges())
	require.NoError(v0.Validate())
	require.NoError(child.Validate())
}

func TestReadAndWriteSameVariable(t *testing.T) {
	// Not SSA: v0 := v0 + 1 in a loop.
	result := analyze(t,
		BlockT{Calls: []CallT{call(nil, []int{0})}, Next: []int{1}},
		BlockT{Calls: []CallT{call([]int{0}, []int{0})}, Next: []int{1, 2}},
		BlockT{Calls: []CallT{call([]int{0}, nil)}},
	)
	require.Equal(t, rangesT{{Start: 1, End: 4}}, result.Interval(0).Ranges())
	require.Equal(t, []interval.PositionT{1, 3}, result.Defs(0))
	require.Equal(t, []interval.PositionT{2, 4}, result.Uses(0))
}

func TestMultipleDefinitions(t *testing.T) {
	// The first definition of v0 is dead.
	result := analyze(t, BlockT{Calls: []CallT{
		call(nil, []int{0}),
		call(nil, []int{0}),
		call([]int{0}, nil),
	}})
	require.Equal(t, rangesT{{Start: 1, End: 1}, {Start: 3, End: 4}}, result.Interval(0).Ranges())
	require.Equal(t, []interval.PositionT{1, 3}, result.Defs(0))
	require.Equal(t, []interval.PositionT{4}, result.Uses(0))
}

func TestLiveOnEntry(t *testing.T) {
	result := analyze(t, BlockT{Calls: []CallT{call(nil, nil), call([]int{5}, nil)}})
	require.Equal(t, rangesT{{Start: 0, End: 2}}, result.Interval(5).Ranges())
	require.Equal(t, []int{5}, result.LiveIn(0))
}

func TestBadPrograms(t *testing.T) {
	for _, program := range []*ProgramT{
		{Blocks: []BlockT{{}}},
		{Blocks: []BlockT{{Calls: []CallT{call(nil, nil)}, Next: []int{1}}}},
		{Blocks: []BlockT{{Calls: []CallT{call(nil, nil)}, Next: []int{-1}}}},
		{Blocks: []BlockT{{Calls: []CallT{call([]int{-2}, nil)}}}},
	} {
		_, err := Analyze(program)
		require.ErrorIs(t, err, ErrBadProgram)
	}
}
