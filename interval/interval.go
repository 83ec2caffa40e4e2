// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Live intervals for linear-scan register allocation.
//
// A live interval is the set of positions in the linearized program
// at which a value must be in a register or spill slot, kept as a
// sorted list of disjoint closed ranges.  The liveness pass builds
// intervals with AddRange and the allocator splits them when it needs
// to free a register.
//
// Each interval also has an end marker that is used to order
// intervals in the allocator's queues.  It starts out as the end of
// the last range but a split sets it to the position of the next use,
// which may be well past the end of the ranges that remain.  The end
// marker is kept as its own field and is never recomputed from the
// ranges.

package interval

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"golang.org/x/tools/container/intsets"
)

// A position in the linearized instruction stream.  Legitimate
// positions are never negative.
type PositionT int

// Passed to Split when the value has no further uses.
const InvalidPosition PositionT = -1

// A closed range of positions, Start <= End.
type RangeT struct {
	Start PositionT
	End   PositionT
}

func (r RangeT) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// The zero value is an empty, valid interval.

type LiveIntervalT struct {
	ranges       []RangeT  // sorted, disjoint and not adjacent
	endMarker    PositionT // not necessarily the end of the last range
	isSplitChild bool      // true if this was returned by Split
	invalid      bool      // the result of splitting with no further use
}

func (live *LiveIntervalT) End() PositionT {
	return live.endMarker
}

func (live *LiveIntervalT) IsValid() bool {
	return !live.invalid
}

func (live *LiveIntervalT) IsSplitFromInterval() bool {
	return live.isSplitChild
}

// Returns a copy of the ranges.
func (live *LiveIntervalT) Ranges() []RangeT {
	return slices.Clone(live.ranges)
}

func (live *LiveIntervalT) Empty() bool {
	return len(live.ranges) == 0
}

// Returns the start of the first range, or InvalidPosition if there
// are no ranges.
func (live *LiveIntervalT) Start() PositionT {
	if len(live.ranges) == 0 {
		return InvalidPosition
	}
	return live.ranges[0].Start
}

// Adds [start, end] to the interval.  Any existing ranges that
// overlap or abut the new one are merged into it.  Ranges may be
// added in any order; liveness analysis usually adds them from the
// bottom up.

func (live *LiveIntervalT) AddRange(start PositionT, end PositionT) {
	if live.invalid {
		preconditionPanic("adding range %d-%d to an invalid interval", start, end)
	}
	if start < 0 {
		preconditionPanic("range %d-%d starts at a negative position", start, end)
	}
	if end < start {
		preconditionPanic("range %d-%d ends before it starts", start, end)
	}
	ranges := live.ranges
	// The first range that could be merged with the new one.
	i := sort.Search(len(ranges), func(k int) bool {
		return start <= ranges[k].End+1
	})
	j := i
	for j < len(ranges) && ranges[j].Start <= end+1 {
		start = min(start, ranges[j].Start)
		end = max(end, ranges[j].End)
		j += 1
	}
	live.ranges = slices.Replace(ranges, i, j, RangeT{Start: start, End: end})
	if live.endMarker < end {
		live.endMarker = end
	}
}

// Splits the interval at 'position'.  The receiver keeps everything
// up to and including 'position' and the returned interval gets
// what is left, starting no earlier than 'nextUse', where the value
// will be reloaded.  The positions in between are live in neither.
//
// The receiver's end marker becomes 'nextUse' and the returned
// interval gets the receiver's old end marker.
//
// If 'nextUse' is InvalidPosition the value is dead after 'position';
// the receiver is clipped, its end marker is left alone, and the
// returned interval is invalid.

func (live *LiveIntervalT) Split(position PositionT, nextUse PositionT) *LiveIntervalT {
	if live.invalid {
		preconditionPanic("splitting an invalid interval at %d", position)
	}
	if 0 < len(live.ranges) && position < live.ranges[0].Start {
		preconditionPanic("split position %d precedes interval start %d",
			position, live.ranges[0].Start)
	}
	if nextUse != InvalidPosition {
		if nextUse < 0 {
			preconditionPanic("next use %d is not a valid position", nextUse)
		}
		if nextUse <= position {
			preconditionPanic("next use %d is not after split position %d", nextUse, position)
		}
	}

	ranges := live.ranges
	// Everything before i ends at or before 'position'.
	i := sort.Search(len(ranges), func(k int) bool {
		return position < ranges[k].End
	})
	var tail []RangeT
	if i < len(ranges) && ranges[i].Start <= position {
		tail = append(tail, RangeT{Start: position + 1, End: ranges[i].End})
		ranges[i].End = position
		i += 1
	}
	tail = append(tail, ranges[i:]...)
	live.ranges = ranges[:i]

	if nextUse == InvalidPosition {
		return &LiveIntervalT{endMarker: InvalidPosition, isSplitChild: true, invalid: true}
	}

	// Nothing before the reload is live in the new interval.
	for 0 < len(tail) && tail[0].End < nextUse {
		tail = tail[1:]
	}
	if 0 < len(tail) {
		tail[0].Start = max(tail[0].Start, nextUse)
	}
	child := &LiveIntervalT{ranges: tail, endMarker: live.endMarker, isSplitChild: true}
	live.endMarker = nextUse
	return child
}

// Checks that the ranges are sorted, disjoint and well formed, and that the end marker is not before the end of the
// last range.  Never modifies the interval.

func (live *LiveIntervalT) Validate() error {
	if live.invalid {
		return nil
	}
	ranges := live.ranges
	for i, r := range ranges {
		if r.End < r.Start {
			return invariantError("range %d is %s", i, r)
		}
		if i == 0 {
			continue
		}
		prev := ranges[i-1]
		if r.Start <= prev.Start {
			return invariantError("range %s does not start after %s", r, prev)
		}
		if r.Start <= prev.End {
			return invariantError("range %s overlaps %s", r, prev)
		}
	}
	if 0 < len(ranges) {
		last := ranges[len(ranges)-1]
		if live.endMarker < last.End {
			return invariantError("end marker %d precedes end of last range %s",
				live.endMarker, last)
		}
	}
	return nil
}

func (live *LiveIntervalT) Covers(position PositionT) bool {
	ranges := live.ranges
	i := sort.Search(len(ranges), func(k int) bool {
		return position <= ranges[k].End
	})
	return i < len(ranges) && ranges[i].Start <= position
}

// True if some position is live in both intervals.

func (live *LiveIntervalT) Intersects(other *LiveIntervalT) bool {
	x := live.ranges
	y := other.ranges
	i := 0
	j := 0
	for i < len(x) && j < len(y) {
		if x[i].End < y[j].Start {
			i += 1
		} else if y[j].End < x[i].Start {
			j += 1
		} else {
			return true
		}
	}
	return false
}

// Adds every live position to 'set'.

func (live *LiveIntervalT) Positions(set *intsets.Sparse) {
	for _, r := range live.ranges {
		for pos := r.Start; pos <= r.End; pos++ {
			set.Insert(int(pos))
		}
	}
}

func (live *LiveIntervalT) String() string {
	if live.invalid {
		return "invalid"
	}
	var result strings.Builder
	for _, r := range live.ranges {
		result.WriteString(r.String())
		result.WriteString(" ")
	}
	fmt.Fprintf(&result, "[end %d]", live.endMarker)
	if live.isSplitChild {
		result.WriteString(" split")
	}
	return result.String()
}
