package deepgram

import "github.com/koscakluka/ema-jarvis/core/speechtotext"

type callbacks struct {
	partialInterimTranscriptionCallback func(transcript string)
	interimTranscriptionCallback        func(transcript string)
	partialTranscriptionCallback        func(transcript string)
	transcriptionCallback               func(transcript string)
	startSpeechCallback                 func()
	endSpeechCallback                   func()

	accumulateTranscript bool
	emitInterim          bool
}

type websocketConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

// newCallbackConfig replaces unset callbacks with no-ops and derives which
// optional Deepgram features the stream has to request.
func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbacks, websocketConfig) {
	noopTranscript := func(string) {}
	noop := func() {}

	c := callbacks{
		partialInterimTranscriptionCallback: noopTranscript,
		interimTranscriptionCallback:        noopTranscript,
		partialTranscriptionCallback:        noopTranscript,
		transcriptionCallback:               noopTranscript,
		startSpeechCallback:                 noop,
		endSpeechCallback:                   noop,

		accumulateTranscript: options.TranscriptionCallback != nil,
		emitInterim: options.PartialInterimTranscriptionCallback != nil ||
			options.InterimTranscriptionCallback != nil,
	}

	if options.PartialInterimTranscriptionCallback != nil {
		c.partialInterimTranscriptionCallback = options.PartialInterimTranscriptionCallback
	}
	if options.InterimTranscriptionCallback != nil {
		c.interimTranscriptionCallback = options.InterimTranscriptionCallback
	}
	if options.PartialTranscriptionCallback != nil {
		c.partialTranscriptionCallback = options.PartialTranscriptionCallback
	}
	if options.TranscriptionCallback != nil {
		c.transcriptionCallback = options.TranscriptionCallback
	}
	if options.SpeechStartedCallback != nil {
		c.startSpeechCallback = options.SpeechStartedCallback
	}
	if options.SpeechEndedCallback != nil {
		c.endSpeechCallback = options.SpeechEndedCallback
	}

	return c, websocketConfig{
		shouldDetectSpeechStart: options.SpeechStartedCallback != nil,
		shouldEnhanceSpeechEndingDetection: options.TranscriptionCallback != nil ||
			options.SpeechEndedCallback != nil,
		shouldRequestInterimResults: c.emitInterim,
	}
}
