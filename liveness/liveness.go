// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Liveness analysis that produces live intervals.
//
// A program is a list of basic blocks, each a list of calls that
// read and write variables, identified by small non-negative
// integers.  Blocks are laid out in order and each call gets two
// positions: inputs are read at the early position 2*i and outputs
// are written at the late position 2*i+1, where i is the index of
// the call in the whole program.  Using two positions per call lets
// a call's output share a register with an input that dies there.
//
// Intervals are found bottom up, last block first and last call
// first within a block, so AddRange sees the ranges in mostly
// descending order and merges the ranges of adjacent blocks.

package liveness

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/s48/regalloc/interval"
	"github.com/s48/regalloc/util"
	"golang.org/x/tools/container/intsets"
)

var ErrBadProgram = errors.New("bad program")

type CallT struct {
	Inputs  []int // variables read
	Outputs []int // variables written
}

type BlockT struct {
	Calls []CallT
	Next  []int // indexes of successor blocks
}

type ProgramT struct {
	Blocks []BlockT
}

func EarlyPosition(callIndex int) interval.PositionT {
	return interval.PositionT(callIndex * 2)
}

func LatePosition(callIndex int) interval.PositionT {
	return interval.PositionT(callIndex*2 + 1)
}

type ResultT struct {
	intervals map[int]*interval.LiveIntervalT
	uses      map[int][]interval.PositionT // reads, sorted
	defs      map[int][]interval.PositionT // writes, sorted
	blocks    []regBlockT
}

// Per-block data.
type regBlockT struct {
	startIndex int             // index of the first call in the whole program
	callCount  int             // number of calls in the block
	gen        *intsets.Sparse // read before being written in the block
	bound      *intsets.Sparse // written in the block
	live       *intsets.Sparse // live at the start of the block
}

func (block *regBlockT) startPosition() interval.PositionT {
	return EarlyPosition(block.startIndex)
}

func (block *regBlockT) endPosition() interval.PositionT {
	return LatePosition(block.startIndex + block.callCount - 1)
}

func Analyze(program *ProgramT) (*ResultT, error) {
	if err := checkProgram(program); err != nil {
		return nil, err
	}
	result := &ResultT{
		intervals: map[int]*interval.LiveIntervalT{},
		uses:      map[int][]interval.PositionT{},
		defs:      map[int][]interval.PositionT{},
		blocks:    make([]regBlockT, len(program.Blocks)),
	}
	index := 0
	for i := range program.Blocks {
		block := &result.blocks[i]
		block.startIndex = index
		block.initialize(&program.Blocks[i])
		index += block.callCount
	}
	result.findLiveSets(program)
	for i := len(program.Blocks) - 1; 0 <= i; i-- {
		result.findLiveRanges(program, i)
	}
	for _, vars := range []map[int][]interval.PositionT{result.uses, result.defs} {
		for v, positions := range vars {
			slices.Sort(positions)
			vars[v] = slices.Compact(positions)
		}
	}
	for v, live := range result.intervals {
		if err := live.Validate(); err != nil {
			return nil, fmt.Errorf("variable %d: %w", v, err)
		}
	}
	return result, nil
}

func checkProgram(program *ProgramT) error {
	for i, block := range program.Blocks {
		if len(block.Calls) == 0 {
			return fmt.Errorf("%w: block %d has no calls", ErrBadProgram, i)
		}
		for _, next := range block.Next {
			if next < 0 || len(program.Blocks) <= next {
				return fmt.Errorf("%w: block %d jumps to nonexistent block %d",
					ErrBadProgram, i, next)
			}
		}
		for j, call := range block.Calls {
			for _, v := range append(slices.Clone(call.Inputs), call.Outputs...) {
				if v < 0 {
					return fmt.Errorf("%w: block %d call %d has negative variable %d",
						ErrBadProgram, i, j, v)
				}
			}
		}
	}
	return nil
}

// Finds the variables that are read before being written and the
// ones that are written.

func (block *regBlockT) initialize(source *BlockT) {
	block.callCount = len(source.Calls)
	block.gen = &intsets.Sparse{}
	block.bound = &intsets.Sparse{}
	block.live = &intsets.Sparse{}
	for i := len(source.Calls) - 1; 0 <= i; i-- {
		call := source.Calls[i]
		for _, v := range call.Outputs {
			block.bound.Insert(v)
			block.gen.Remove(v)
		}
		for _, v := range call.Inputs {
			block.gen.Insert(v)
		}
	}
	block.live.Copy(block.gen)
}

// A variable is live at the start of a block if it is read in the
// block before being written, or if it is live at the start of a
// successor and not written in the block.  Strongly connected
// components are solved in reverse topological order, so each one
// only needs to be iterated until its own blocks stop changing.

func (result *ResultT) findLiveSets(program *ProgramT) {
	components := util.StronglyConnectedComponents(len(program.Blocks),
		func(i int) []int { return program.Blocks[i].Next })
	for i := len(components) - 1; 0 <= i; i-- {
		change := true
		for change {
			change = false
			for _, b := range components[i] {
				block := &result.blocks[b]
				live := result.liveOut(program, b)
				live.DifferenceWith(block.bound)
				live.UnionWith(block.gen)
				if !live.Equals(block.live) {
					block.live = live
					change = true
				}
			}
		}
	}
}

func (result *ResultT) liveOut(program *ProgramT, b int) *intsets.Sparse {
	live := &intsets.Sparse{}
	for _, next := range program.Blocks[b].Next {
		live.UnionWith(result.blocks[next].live)
	}
	return live
}

func (result *ResultT) getInterval(v int) *interval.LiveIntervalT {
	live := result.intervals[v]
	if live == nil {
		live = &interval.LiveIntervalT{}
		result.intervals[v] = live
	}
	return live
}

func (result *ResultT) findLiveRanges(program *ProgramT, b int) {
	block := &result.blocks[b]
	ends := map[int]interval.PositionT{}
	for _, v := range result.liveOut(program, b).AppendTo(nil) {
		ends[v] = block.endPosition()
	}
	calls := program.Blocks[b].Calls
	for i := len(calls) - 1; 0 <= i; i-- {
		call := calls[i]
		late := LatePosition(block.startIndex + i)
		early := EarlyPosition(block.startIndex + i)
		for _, v := range call.Outputs {
			result.defs[v] = append(result.defs[v], late)
			end, found := ends[v]
			if !found {
				end = late // never read
			}
			result.getInterval(v).AddRange(late, end)
			delete(ends, v)
		}
		for _, v := range call.Inputs {
			result.uses[v] = append(result.uses[v], early)
			if _, found := ends[v]; !found {
				ends[v] = early
			}
		}
	}
	for _, v := range block.live.AppendTo(nil) {
		result.getInterval(v).AddRange(block.startPosition(), ends[v])
	}
}

//----------------------------------------------------------------
// Queries

// Returns nil if 'v' does not appear in the program.
func (result *ResultT) Interval(v int) *interval.LiveIntervalT {
	return result.intervals[v]
}

// The variables that appear in the program, in increasing order.
func (result *ResultT) Variables() []int {
	vars := make([]int, 0, len(result.intervals))
	for v := range result.intervals {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	return vars
}

func (result *ResultT) Uses(v int) []interval.PositionT {
	return slices.Clone(result.uses[v])
}

func (result *ResultT) Defs(v int) []interval.PositionT {
	return slices.Clone(result.defs[v])
}

// The first position after 'position' at which 'v' is read, or
// InvalidPosition if there is none.  This is where a split interval
// has to be reloaded.

func (result *ResultT) NextUse(v int, position interval.PositionT) interval.PositionT {
	uses := result.uses[v]
	i := sort.Search(len(uses), func(k int) bool {
		return position < uses[k]
	})
	if i == len(uses) {
		return interval.InvalidPosition
	}
	return uses[i]
}

func (result *ResultT) LiveIn(block int) []int {
	return result.blocks[block].live.AppendTo(nil)
}

func (result *ResultT) BlockStart(block int) interval.PositionT {
	return result.blocks[block].startPosition()
}

func (result *ResultT) BlockEnd(block int) interval.PositionT {
	return result.blocks[block].endPosition()
}
