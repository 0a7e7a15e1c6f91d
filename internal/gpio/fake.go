package gpio

import (
	"errors"

	"github.com/sweeney/traffic-light/internal/logic"
)

// FakeButtons is a test double that returns scripted button samples.
type FakeButtons struct {
	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []logic.Buttons

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeButtons creates a FakeButtons with the given samples.
func NewFakeButtons(samples []logic.Buttons) *FakeButtons {
	return &FakeButtons{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButtons) Read() (logic.Buttons, error) {
	if f.ReadError != nil {
		return logic.Buttons{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return logic.Buttons{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeButtons) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeButtons) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeLights records every level written.
type FakeLights struct {
	// History contains every Set call in order.
	History []logic.Levels

	// Current is the last value set.
	Current logic.Levels

	// SetError, if set, will be returned by Set.
	SetError error

	Closed bool
}

// NewFakeLights creates a FakeLights with all outputs off.
func NewFakeLights() *FakeLights {
	return &FakeLights{}
}

// Set records the levels.
func (f *FakeLights) Set(levels logic.Levels) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, levels)
	f.Current = levels
	return nil
}

// Close turns the outputs off and marks them closed.
func (f *FakeLights) Close() error {
	f.Current = logic.Off
	f.Closed = true
	return nil
}

// FakeAnalog returns scripted dial readings, repeating the last one.
type FakeAnalog struct {
	Values    []int
	index     int
	ReadError error
}

// NewFakeAnalog creates a FakeAnalog with the given readings.
func NewFakeAnalog(values ...int) *FakeAnalog {
	return &FakeAnalog{Values: values}
}

// Read returns the next scripted reading.
func (f *FakeAnalog) Read() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no values configured")
	}
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}
