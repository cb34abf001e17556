package audio

import (
	"context"
	"sync"
)

// Fanout streams a single Input to every subscriber. The hotword detector and
// the command transcriber both listen to the same microphone through it.
type Fanout struct {
	input Input

	mu          sync.RWMutex
	nextID      int
	subscribers map[int]func([]byte)
}

func NewFanout(input Input) *Fanout {
	return &Fanout{
		input:       input,
		subscribers: map[int]func([]byte){},
	}
}

func (f *Fanout) Subscribe(onAudio func(audio []byte)) func() {
	if onAudio == nil {
		return func() {}
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = onAudio
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers audio to every current subscriber, in no particular order.
func (f *Fanout) Publish(audio []byte) {
	f.mu.RLock()
	subscribers := make([]func([]byte), 0, len(f.subscribers))
	for _, subscriber := range f.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	f.mu.RUnlock()

	for _, subscriber := range subscribers {
		subscriber(audio)
	}
}

// Run streams the underlying input into Publish until ctx is cancelled.
func (f *Fanout) Run(ctx context.Context) error {
	return f.input.Stream(ctx, f.Publish)
}

func (f *Fanout) EncodingInfo() EncodingInfo {
	if f.input == nil {
		return GetDefaultEncodingInfo()
	}
	return f.input.EncodingInfo()
}
