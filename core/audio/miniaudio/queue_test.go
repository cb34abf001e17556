package miniaudio

import (
	"bytes"
	"testing"
)

func reached(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPlaybackQueueReleasesMarkAfterQueuedAudio(t *testing.T) {
	q := &playbackQueue{}
	q.push([]byte{1, 2, 3, 4, 5, 6})
	mark := q.mark()
	q.push([]byte{7, 8})

	out := make([]byte, 4)
	q.pull(out)
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected first frame, got %v", out)
	}
	if reached(mark) {
		t.Fatalf("expected mark to wait for the rest of the audio before it")
	}

	q.pull(out)
	if !bytes.Equal(out, []byte{5, 6, 7, 8}) {
		t.Fatalf("expected second frame, got %v", out)
	}
	if !reached(mark) {
		t.Fatalf("expected mark to be reached")
	}
}

func TestPlaybackQueuePadsWithSilence(t *testing.T) {
	q := &playbackQueue{}
	q.push([]byte{9, 9})

	out := []byte{1, 1, 1, 1}
	q.pull(out)
	if !bytes.Equal(out, []byte{9, 9, 0, 0}) {
		t.Fatalf("expected padded frame, got %v", out)
	}

	q.pull(out)
	if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Fatalf("expected silence, got %v", out)
	}
}

func TestPlaybackQueueMarkOnEmptyQueueIsReachedOnNextPull(t *testing.T) {
	q := &playbackQueue{}
	mark := q.mark()
	if reached(mark) {
		t.Fatalf("expected mark to wait for the device")
	}

	q.pull(make([]byte, 2))
	if !reached(mark) {
		t.Fatalf("expected mark to be reached")
	}
}

func TestPlaybackQueueClearReleasesMarks(t *testing.T) {
	q := &playbackQueue{}
	q.push(make([]byte, 100))
	first, second := q.mark(), q.mark()

	q.clear()
	if !reached(first) || !reached(second) {
		t.Fatalf("expected all marks to be released")
	}

	out := []byte{1, 1}
	q.pull(out)
	if !bytes.Equal(out, []byte{0, 0}) {
		t.Fatalf("expected cleared audio not to play, got %v", out)
	}
}
