// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Runs scripts of live interval operations.  Each command is an
// S-expression:
//
//  (interval v (59 59) (61 62))  new interval 'v' with the given ranges
//  (range v 64 64)               add a range to 'v'
//  (split v 66 70 w)             split 'v', the result is named 'w'
//  (split v 64 none w)           split with no further use
//  (show v)                      print 'v'
//  (positions v)                 print the positions at which 'v' is live
//  (intersects v w)              print whether 'v' and 'w' intersect
//  (queue)                       print the valid intervals in start order
//
// Every interval that is changed is validated afterwards.

package script

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/tools/container/intsets"

	"github.com/s48/regalloc/interval"
	"github.com/s48/regalloc/util"
)

var ErrScript = errors.New("script error")

type RunnerT struct {
	out       io.Writer
	logger    *zap.Logger
	intervals map[string]*interval.LiveIntervalT
}

func NewRunner(out io.Writer, logger *zap.Logger) *RunnerT {
	return &RunnerT{
		out:       out,
		logger:    logger,
		intervals: map[string]*interval.LiveIntervalT{},
	}
}

// Returns the interval with the given name, or nil.
func (runner *RunnerT) Interval(name string) *interval.LiveIntervalT {
	return runner.intervals[name]
}

func (runner *RunnerT) Run(source string) error {
	sexps, err := util.ParseSExps(source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScript, err)
	}
	for _, command := range sexps {
		if err := runner.runCommand(command); err != nil {
			return err
		}
	}
	return nil
}

type commandT struct {
	argCount int // not including the command name
	run      func(runner *RunnerT, args []*util.SExpT) error
}

var commands = map[string]commandT{
	"range":      {3, (*RunnerT).addRange},
	"split":      {4, (*RunnerT).split},
	"show":       {1, (*RunnerT).show},
	"positions":  {1, (*RunnerT).positions},
	"intersects": {2, (*RunnerT).intersects},
	"queue":      {0, (*RunnerT).queue},
}

func (runner *RunnerT) runCommand(sexp *util.SExpT) (err error) {
	if sexp.Kind != util.SExpList || len(sexp.List) == 0 || sexp.List[0].Kind != util.SExpSymbol {
		return scriptError(sexp, "not a command")
	}
	name := sexp.List[0].Symbol
	args := sexp.List[1:]
	runner.logger.Debug("running command",
		zap.Int("line", sexp.Line),
		zap.Stringer("command", sexp))

	// Precondition violations in the interval code are reported as
	// errors rather than crashing the script.
	defer func() {
		if r := recover(); r != nil {
			panicErr, ok := r.(error)
			if !ok || !errors.Is(panicErr, interval.ErrPreconditionViolation) {
				panic(r)
			}
			err = scriptError(sexp, "%v", panicErr)
		}
	}()

	if name == "interval" {
		return runner.newInterval(sexp, args)
	}
	command, found := commands[name]
	if !found {
		return scriptError(sexp, "unknown command '%s'", name)
	}
	if len(args) != command.argCount {
		return scriptError(sexp, "'%s' takes %d arguments, got %d",
			name, command.argCount, len(args))
	}
	if err := command.run(runner, args); err != nil {
		return scriptError(sexp, "%v", err)
	}
	return nil
}

func scriptError(sexp *util.SExpT, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s: %s", ErrScript, sexp.Line, sexp, fmt.Sprintf(format, args...))
}

//----------------------------------------------------------------
// Argument helpers

func symbolArg(arg *util.SExpT) (string, error) {
	if arg.Kind != util.SExpSymbol {
		return "", fmt.Errorf("expected a name, got %s", arg)
	}
	return arg.Symbol, nil
}

func positionArg(arg *util.SExpT) (interval.PositionT, error) {
	if arg.IsSymbol("none") {
		return interval.InvalidPosition, nil
	}
	if arg.Kind != util.SExpInt {
		return 0, fmt.Errorf("expected a position, got %s", arg)
	}
	return interval.PositionT(arg.Integer), nil
}

func (runner *RunnerT) intervalArg(arg *util.SExpT) (*interval.LiveIntervalT, error) {
	name, err := symbolArg(arg)
	if err != nil {
		return nil, err
	}
	live := runner.intervals[name]
	if live == nil {
		return nil, fmt.Errorf("no interval named '%s'", name)
	}
	if !live.IsValid() {
		return nil, fmt.Errorf("interval '%s' is invalid", name)
	}
	return live, nil
}

func (runner *RunnerT) validate(name string, live *interval.LiveIntervalT) error {
	if err := live.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

//----------------------------------------------------------------
// Commands

func (runner *RunnerT) newInterval(sexp *util.SExpT, args []*util.SExpT) error {
	if len(args) == 0 {
		return scriptError(sexp, "'interval' needs a name")
	}
	name, err := symbolArg(args[0])
	if err != nil {
		return scriptError(sexp, "%v", err)
	}
	live := &interval.LiveIntervalT{}
	for _, arg := range args[1:] {
		if arg.Kind != util.SExpList || len(arg.List) != 2 {
			return scriptError(sexp, "expected (start end), got %s", arg)
		}
		start, err := positionArg(arg.List[0])
		if err != nil {
			return scriptError(sexp, "%v", err)
		}
		end, err := positionArg(arg.List[1])
		if err != nil {
			return scriptError(sexp, "%v", err)
		}
		live.AddRange(start, end)
	}
	if err := runner.validate(name, live); err != nil {
		return scriptError(sexp, "%v", err)
	}
	runner.intervals[name] = live
	return nil
}

func (runner *RunnerT) addRange(args []*util.SExpT) error {
	live, err := runner.intervalArg(args[0])
	if err != nil {
		return err
	}
	start, err := positionArg(args[1])
	if err != nil {
		return err
	}
	end, err := positionArg(args[2])
	if err != nil {
		return err
	}
	live.AddRange(start, end)
	return runner.validate(args[0].Symbol, live)
}

func (runner *RunnerT) split(args []*util.SExpT) error {
	live, err := runner.intervalArg(args[0])
	if err != nil {
		return err
	}
	position, err := positionArg(args[1])
	if err != nil {
		return err
	}
	nextUse, err := positionArg(args[2])
	if err != nil {
		return err
	}
	childName, err := symbolArg(args[3])
	if err != nil {
		return err
	}
	child := live.Split(position, nextUse)
	runner.logger.Debug("split",
		zap.String("interval", args[0].Symbol),
		zap.Int("position", int(position)),
		zap.Int("nextUse", int(nextUse)),
		zap.Stringer("kept", live),
		zap.Stringer("split", child))
	runner.intervals[childName] = child
	if err := runner.validate(args[0].Symbol, live); err != nil {
		return err
	}
	return runner.validate(childName, child)
}

func (runner *RunnerT) show(args []*util.SExpT) error {
	name, err := symbolArg(args[0])
	if err != nil {
		return err
	}
	live := runner.intervals[name]
	if live == nil {
		return fmt.Errorf("no interval named '%s'", name)
	}
	fmt.Fprintf(runner.out, "%s: %s\n", name, live)
	return nil
}

func (runner *RunnerT) positions(args []*util.SExpT) error {
	live, err := runner.intervalArg(args[0])
	if err != nil {
		return err
	}
	var set intsets.Sparse
	live.Positions(&set)
	fmt.Fprintf(runner.out, "%s: %s\n", args[0].Symbol, &set)
	return nil
}

func (runner *RunnerT) intersects(args []*util.SExpT) error {
	x, err := runner.intervalArg(args[0])
	if err != nil {
		return err
	}
	y, err := runner.intervalArg(args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(runner.out, "%s %s: %t\n", args[0].Symbol, args[1].Symbol, x.Intersects(y))
	return nil
}

// Orders the valid, non-empty intervals by start position the way a
// linear-scan allocator's unhandled queue does.  Ties go by name to
// keep the output deterministic.

type namedIntervalT struct {
	name string
	live *interval.LiveIntervalT
}

func (runner *RunnerT) queue(args []*util.SExpT) error {
	unhandled := util.MakePriorityQueue(func(x namedIntervalT, y namedIntervalT) bool {
		if x.live.Start() != y.live.Start() {
			return x.live.Start() < y.live.Start()
		}
		return x.name < y.name
	})
	for name, live := range runner.intervals {
		if live.IsValid() && !live.Empty() {
			unhandled.Enqueue(namedIntervalT{name, live})
		}
	}
	for !unhandled.Empty() {
		next := unhandled.Dequeue()
		fmt.Fprintf(runner.out, "%d %s: %s\n", next.live.Start(), next.name, next.live)
	}
	return nil
}
