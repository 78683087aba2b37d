package service

import (
	"sync"
	"time"
)

// DefaultCoalesceWindow is how long an answer edit may sit pending before
// it is written out.
const DefaultCoalesceWindow = 200 * time.Millisecond

type coalesceKey struct {
	surveyID   string
	questionID string
}

type pendingWrite struct {
	timer *time.Timer
	value string
}

// Coalescer defers per-question answer writes so rapid edits to the same
// field collapse into a single submission. At most one deferred write exists
// per (survey, question) pair: a new edit reschedules the pending one, and
// an explicit flush submits immediately, cancelling the timer.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[coalesceKey]*pendingWrite
	submit  func(surveyID, questionID, value string)
	stopped bool
}

// NewCoalescer creates a Coalescer that invokes submit once per settled
// edit. A non-positive window falls back to the default.
func NewCoalescer(window time.Duration, submit func(surveyID, questionID, value string)) *Coalescer {
	if submit == nil {
		panic("submit must not be nil")
	}
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	return &Coalescer{
		window:  window,
		pending: make(map[coalesceKey]*pendingWrite),
		submit:  submit,
	}
}

// Edit records a new value for the question and restarts its coalescing
// window. Only the last value within the window is submitted.
func (c *Coalescer) Edit(surveyID, questionID, value string) {
	key := coalesceKey{surveyID: surveyID, questionID: questionID}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	if entry, ok := c.pending[key]; ok {
		entry.value = value
		entry.timer.Reset(c.window)
		return
	}

	entry := &pendingWrite{value: value}
	entry.timer = time.AfterFunc(c.window, func() { c.fire(key) })
	c.pending[key] = entry
}

// Flush submits the question's pending value immediately, bypassing the
// timer. Flushing a key with nothing pending is a no-op.
func (c *Coalescer) Flush(surveyID, questionID string) {
	key := coalesceKey{surveyID: surveyID, questionID: questionID}

	c.mu.Lock()
	entry, ok := c.pending[key]
	if ok {
		entry.timer.Stop()
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if ok {
		c.submit(key.surveyID, key.questionID, entry.value)
	}
}

// FlushAll submits every pending value immediately. Used when the user
// performs the final submit action for the whole form.
func (c *Coalescer) FlushAll() {
	c.mu.Lock()
	entries := make(map[coalesceKey]*pendingWrite, len(c.pending))
	for key, entry := range c.pending {
		entry.timer.Stop()
		entries[key] = entry
	}
	c.pending = make(map[coalesceKey]*pendingWrite)
	c.mu.Unlock()

	for key, entry := range entries {
		c.submit(key.surveyID, key.questionID, entry.value)
	}
}

// Stop discards all pending writes without submitting them. The Coalescer
// accepts no further edits afterwards.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	for key, entry := range c.pending {
		entry.timer.Stop()
		delete(c.pending, key)
	}
}

func (c *Coalescer) fire(key coalesceKey) {
	c.mu.Lock()
	entry, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if ok {
		c.submit(key.surveyID, key.questionID, entry.value)
	}
}
