// Package scheduler provides a cooperative fixed-interval task registry.
// Tasks run in registration order on the caller's goroutine; there is no
// preemption and no priority.
package scheduler

import "time"

// Task is a periodic job. It is only invoked while enabled.
type Task struct {
	name     string
	interval time.Duration
	run      func(now time.Time)
	enabled  bool
	// due is set on Enable so the task runs on the next Execute.
	due     bool
	lastRun time.Time
	runs    int
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Interval returns the task period.
func (t *Task) Interval() time.Duration { return t.interval }

// Enabled reports whether the task is enabled.
func (t *Task) Enabled() bool { return t.enabled }

// Runs returns how many times the task has run.
func (t *Task) Runs() int { return t.runs }

// Enable turns the task on. Enabling a disabled task schedules it for the
// next Execute; enabling an enabled task is a no-op.
func (t *Task) Enable() {
	if t.enabled {
		return
	}
	t.enabled = true
	t.due = true
}

// Disable turns the task off.
func (t *Task) Disable() {
	t.enabled = false
	t.due = false
}

// Scheduler holds the registered tasks.
type Scheduler struct {
	tasks []*Task
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task, initially disabled.
func (s *Scheduler) Add(name string, interval time.Duration, run func(now time.Time)) *Task {
	t := &Task{name: name, interval: interval, run: run}
	s.tasks = append(s.tasks, t)
	return t
}

// Task returns the task with the given name, or nil.
func (s *Scheduler) Task(name string) *Task {
	for _, t := range s.tasks {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Tasks returns the registered tasks in order.
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// DisableAll turns every task off.
func (s *Scheduler) DisableAll() {
	for _, t := range s.tasks {
		t.Disable()
	}
}

// Execute runs every enabled task whose interval has elapsed and returns
// the number of tasks run. A task disabled by an earlier task in the same
// pass is skipped.
func (s *Scheduler) Execute(now time.Time) int {
	n := 0
	for _, t := range s.tasks {
		if !t.enabled {
			continue
		}
		if !t.due && now.Sub(t.lastRun) < t.interval {
			continue
		}
		t.due = false
		t.lastRun = now
		t.runs++
		t.run(now)
		n++
	}
	return n
}
