package texttospeech

import "github.com/koscakluka/ema-jarvis/core/audio"

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called with every audio chunk the TTS client
	// produces, in addition to it being played.
	SpeechAudioCallback func(audio []byte)
	// SpeechMarkCallback is called with the spoken text once its audio has
	// finished playing.
	SpeechMarkCallback func(string)
	// ErrorCallback is called when the TTS client encounters an error outside of
	// a Speak call, e.g. when the connection drops.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

// ApplyOptions resolves opts on top of no-op callbacks and the default
// encoding.
func ApplyOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechMarkCallback:  func(string) {},
		ErrorCallback:       func(error) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if callback != nil {
			o.SpeechAudioCallback = callback
		}
	}
}

func WithSpeechMarkCallback(callback func(string)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if callback != nil {
			o.SpeechMarkCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
