// Package sched implements the optional cooperative task scheduler of
// spec.md §4.9: multiple VM tasks sharing one arena, each given a fixed
// instruction budget per tick, picked from a runnable set. A sleeping task
// drops out of that set until woken; a task that preempts or fails is
// marked dead and never runs again. Grounded on
// wudi-hey's worker-pool dispatch loop (a fixed set of workers drained
// round-robin off a ready queue), narrowed to single-goroutine
// cooperative scheduling since spec §5 rules out task-level concurrency
// within one VM instance.
package sched

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/embedvm/corevm/vm"
)

// TaskID is the externally visible task handle spec §6 returns from its
// create_task API, backed by a google/uuid value rather than a raw
// pointer or index.
type TaskID uuid.UUID

func (id TaskID) String() string { return uuid.UUID(id).String() }

// ErrUnknownTask is returned by any Scheduler method given a TaskID it
// did not create.
var ErrUnknownTask = errors.New("sched: unknown task id")

type taskState uint8

const (
	stateRunnable taskState = iota
	stateSleeping
	stateDead
)

type task struct {
	id    TaskID
	vmID  int32
	v     *vm.VM
	state taskState
	err   error
}

// Scheduler multiplexes a set of VM tasks over a shared time slice,
// tracking which are currently runnable with a set whose membership check
// is O(1); Tick still walks every task in creation order and consults that
// set for each one.
type Scheduler struct {
	tasks     map[TaskID]*task
	runnable  mapset.Set[TaskID]
	order     []TaskID // creation order, for round-robin fairness
	nextSeq   int32
	sliceSize int
}

// New creates a Scheduler whose tasks each run sliceSize instructions per
// tick before yielding (spec §4.9's "fixed time slice").
func New(sliceSize int) *Scheduler {
	return &Scheduler{
		tasks:     make(map[TaskID]*task),
		runnable:  mapset.NewSet[TaskID](),
		sliceSize: sliceSize,
	}
}

// Spawn registers v as a new runnable task and returns its handle. The
// caller is responsible for having already called v.Load on v.
func (s *Scheduler) Spawn(v *vm.VM) TaskID {
	id := TaskID(uuid.New())
	t := &task{id: id, vmID: v.VMID(), v: v, state: stateRunnable}
	s.tasks[id] = t
	s.runnable.Add(id)
	s.order = append(s.order, id)
	return id
}

// Sleep removes id from the runnable set without killing it; Wake puts
// it back. Used by a native method that blocks on an external event
// (spec §5: "a task may yield ... without the scheduler considering it
// finished").
func (s *Scheduler) Sleep(id TaskID) error {
	t, ok := s.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	t.state = stateSleeping
	s.runnable.Remove(id)
	return nil
}

func (s *Scheduler) Wake(id TaskID) error {
	t, ok := s.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	if t.state == stateDead {
		return fmt.Errorf("sched: cannot wake dead task %s", id)
	}
	t.state = stateRunnable
	s.runnable.Add(id)
	return nil
}

// Kill marks id dead and removes it from the runnable set permanently.
func (s *Scheduler) Kill(id TaskID) error {
	t, ok := s.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	t.state = stateDead
	s.runnable.Remove(id)
	return nil
}

// Runnable reports how many tasks are currently eligible to run.
func (s *Scheduler) Runnable() int { return s.runnable.Cardinality() }

// Tick runs every currently runnable task for up to one time slice in
// creation order, removing tasks that finish (preempt) or error out of
// the runnable set. It returns the first error from a task that did not
// terminate cleanly, if any, after giving every runnable task its turn.
func (s *Scheduler) Tick() error {
	var firstErr error
	for _, id := range s.order {
		if !s.runnable.Contains(id) {
			continue
		}
		t := s.tasks[id]
		err := t.v.Run(s.sliceSize)
		switch {
		case err != nil:
			t.state = stateDead
			t.err = err
			s.runnable.Remove(id)
			if firstErr == nil {
				firstErr = fmt.Errorf("sched: task %s: %w", id, err)
			}
		case t.v.Preempted():
			t.state = stateDead
			s.runnable.Remove(id)
		}
	}
	return firstErr
}

// RunUntilDone ticks the scheduler until no task remains runnable,
// stopping early on the first task error.
func (s *Scheduler) RunUntilDone() error {
	for s.Runnable() > 0 {
		if err := s.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Err returns the terminal error recorded for id, if any.
func (s *Scheduler) Err(id TaskID) error {
	t, ok := s.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	return t.err
}
