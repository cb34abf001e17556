package audio

import "context"

// Input is a microphone-like device. Stream blocks, delivering captured audio
// to onAudio until ctx is cancelled.
type Input interface {
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	EncodingInfo() EncodingInfo
}

// Output is a speaker-like device.
type Output interface {
	SendAudio(audio []byte) error
	// AwaitMark blocks until all audio sent so far has been played.
	AwaitMark() error
	ClearBuffer()
	EncodingInfo() EncodingInfo
}

// Source hands out captured audio to any number of subscribers.
type Source interface {
	Subscribe(onAudio func(audio []byte)) (unsubscribe func())
	EncodingInfo() EncodingInfo
}
