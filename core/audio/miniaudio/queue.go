package miniaudio

import "sync"

// playbackQueue holds audio waiting for the playback device together with
// the marks placed between it.
type playbackQueue struct {
	mu      sync.Mutex
	pending []byte
	marks   []playbackMark
}

type playbackMark struct {
	// remaining is how many queued bytes still have to be played before the
	// mark is reached.
	remaining int
	reached   chan struct{}
}

func (q *playbackQueue) push(audio []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, audio...)
}

// mark returns a channel that is closed once everything queued so far has
// been handed to the device, or the queue has been cleared.
func (q *playbackQueue) mark() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	reached := make(chan struct{})
	q.marks = append(q.marks, playbackMark{remaining: len(q.pending), reached: reached})
	return reached
}

// pull fills out with queued audio, padding with silence, and releases the
// marks it passed.
func (q *playbackQueue) pull(out []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := copy(out, q.pending)
	clear(out[n:])
	if n == len(q.pending) {
		q.pending = nil
	} else {
		q.pending = q.pending[n:]
	}

	kept := q.marks[:0]
	for _, mark := range q.marks {
		if mark.remaining <= len(out) {
			close(mark.reached)
			continue
		}
		mark.remaining -= len(out)
		kept = append(kept, mark)
	}
	q.marks = kept
}

// clear drops queued audio and releases every mark.
func (q *playbackQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	for _, mark := range q.marks {
		close(mark.reached)
	}
	q.marks = nil
}
