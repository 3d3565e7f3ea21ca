// Package scheduler runs deferred and repeating tasks that are advanced once per frame.
package scheduler

import (
	"math"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Task is the unit of work a Scheduler fires.
type Task func()

type policyKind uint8

const (
	onlyOnce policyKind = iota
	repeatN
	repeatForever
)

// Policy decides what a Scheduler does after its task fires.
type Policy struct {
	kind  policyKind
	times int // Re-arms left, only meaningful for Repeat
}

// OnlyOnce fires the task a single time.
func OnlyOnce() Policy { return Policy{kind: onlyOnce} }

// Repeat fires the task once and then re-arms n more times, so the task runs n+1 times in total.
func Repeat(n int) Policy { return Policy{kind: repeatN, times: n} }

// RepeatForever re-arms after every firing.
func RepeatForever() Policy { return Policy{kind: repeatForever} }

// Times returns the re-arms left for a Repeat policy and zero otherwise.
func (p Policy) Times() int {
	return p.times
}

func (p Policy) String() string {
	switch p.kind {
	case onlyOnce:
		return "OnlyOnce"
	case repeatN:
		return "Repeat"
	case repeatForever:
		return "RepeatForever"
	default:
		return "Unknown"
	}
}

// Scheduler counts down a wait and fires its task when the wait reaches zero. A scheduler is
// created running and becomes inert for good once its policy is exhausted.
type Scheduler struct {
	id       uuid.UUID
	task     Task
	policy   Policy
	running  bool
	wait     float64  // Remaining wait
	interval float64  // Wait restored on every re-arm
	owner    *Manager // Manager the scheduler is registered with, if any
}

// New returns a running scheduler that fires task after wait units have elapsed.
func New(wait float64, policy Policy, task Task) (*Scheduler, error) {
	if math.IsNaN(wait) || math.IsInf(wait, 0) || wait < 0 {
		return nil, eris.Errorf("scheduler wait must be a finite non-negative number, got %v", wait)
	}
	if policy.kind == repeatN && policy.times < 0 {
		return nil, eris.Errorf("scheduler repeat count must be non-negative, got %d", policy.times)
	}
	if task == nil {
		return nil, eris.New("scheduler task must not be nil")
	}
	return &Scheduler{
		id:       uuid.New(),
		task:     task,
		policy:   policy,
		running:  true,
		wait:     wait,
		interval: wait,
	}, nil
}

func (s *Scheduler) ID() uuid.UUID {
	return s.id
}

// IsRunning reports whether the scheduler will fire again.
func (s *Scheduler) IsRunning() bool {
	return s.running
}

// Remaining returns the wait left before the next firing.
func (s *Scheduler) Remaining() float64 {
	return s.wait
}

func (s *Scheduler) Interval() float64 {
	return s.interval
}

// Policy returns the current policy. For Repeat, the count reflects the re-arms still left.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Update advances the scheduler by dt and fires the task if the wait has run out.
func (s *Scheduler) Update(dt float64) {
	if !s.running {
		return
	}

	s.wait -= dt
	if s.wait > 0 {
		return
	}

	s.task()

	switch s.policy.kind {
	case onlyOnce:
		s.running = false
	case repeatN:
		if s.policy.times > 0 {
			s.policy.times--
			s.wait = s.interval
		} else {
			s.running = false
		}
	case repeatForever:
		s.wait = s.interval
	}
}
