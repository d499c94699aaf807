package gpio

import (
	"errors"
	"sync"
)

// FakeInput is a test double that returns scripted button states.
// It is safe for concurrent use.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted pressed values to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Reads counts calls to Pressed.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given samples.
func NewFakeInput(samples ...bool) *FakeInput {
	return &FakeInput{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// SetReadError changes the error returned by Pressed.
func (f *FakeInput) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset resets the input to the beginning of samples.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Reads = 0
	f.Closed = false
	f.mu.Unlock()
}

// FakeOutput records every level written to it.
// It is safe for concurrent use.
type FakeOutput struct {
	mu     sync.Mutex
	writes []bool
	level  bool
	closed bool

	// SetError, if set, is returned by Set for on=true writes.
	// Writes of low always succeed so callers can be checked for
	// driving the line low after a failure.
	SetError error
}

// NewFakeOutput creates a FakeOutput with the line low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the write.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on && f.SetError != nil {
		return f.SetError
	}
	f.writes = append(f.writes, on)
	f.level = on
	return nil
}

// Close drives the line low and marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.level = false
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Level returns the current line level.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Writes returns a copy of every level written.
func (f *FakeOutput) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

// Pulses counts low-to-high transitions.
func (f *FakeOutput) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	prev := false
	for _, w := range f.writes {
		if w && !prev {
			n++
		}
		prev = w
	}
	return n
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
