package messaging

// FakeMirror records mirrored state for test assertions.
type FakeMirror struct {
	States       []State
	Brightness   []int
	PublishError error
	Closed       bool
}

func NewFakeMirror() *FakeMirror {
	return &FakeMirror{}
}

func (f *FakeMirror) PublishState(s State) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.States = append(f.States, s)
	return nil
}

func (f *FakeMirror) PublishBrightness(brightness int) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Brightness = append(f.Brightness, brightness)
	return nil
}

func (f *FakeMirror) Close() error {
	f.Closed = true
	return nil
}
