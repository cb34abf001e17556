// Package hotword detects a spoken keyword in a live transcription of an
// audio source.
package hotword

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/koscakluka/ema-jarvis/core/audio"
	"github.com/koscakluka/ema-jarvis/core/speechtotext"
)

const (
	DefaultKeyword = "jarvis"

	defaultReconnectDelay = time.Second
)

type Detector struct {
	source     audio.Source
	recognizer speechtotext.Recognizer

	keyword        string
	reconnectDelay time.Duration

	paused   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	callbackMu   sync.RWMutex
	onActivation func()
}

type DetectorOption func(*Detector)

func WithKeyword(keyword string) DetectorOption {
	return func(d *Detector) {
		if normalized := normalize(keyword); normalized != "" {
			d.keyword = normalized
		}
	}
}

func WithReconnectDelay(delay time.Duration) DetectorOption {
	return func(d *Detector) { d.reconnectDelay = delay }
}

func NewDetector(source audio.Source, recognizer speechtotext.Recognizer, opts ...DetectorOption) *Detector {
	d := &Detector{
		source:         source,
		recognizer:     recognizer,
		keyword:        DefaultKeyword,
		reconnectDelay: defaultReconnectDelay,
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Keyword() string { return d.keyword }

// OnActivation registers the callback run every time the keyword is heard
// while the detector is not paused. It runs on the transcription goroutine.
func (d *Detector) OnActivation(callback func()) {
	d.callbackMu.Lock()
	defer d.callbackMu.Unlock()
	d.onActivation = callback
}

// Pause stops audio from reaching the recognizer and ignores transcripts
// already in flight.
func (d *Detector) Pause() {
	if !d.paused.Swap(true) {
		logger.Debug("keyword detection paused")
	}
}

func (d *Detector) Resume() {
	if d.paused.Swap(false) {
		logger.Debug("keyword detection resumed")
	}
}

func (d *Detector) Paused() bool { return d.paused.Load() }

// Stop ends Start. It is safe to call more than once and before Start.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Start listens for the keyword until Stop is called or ctx is done. Lost
// transcription streams are reopened.
func (d *Detector) Start(ctx context.Context) error {
	logger.Info("listening for keyword", "keyword", d.keyword)

	for {
		select {
		case <-d.stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		streamDone, closeStream, err := d.listen(ctx)
		if err != nil {
			return fmt.Errorf("failed to start keyword detection: %w", err)
		}

		select {
		case <-d.stop:
			closeStream()
			return nil
		case <-ctx.Done():
			closeStream()
			return nil
		case <-streamDone:
			closeStream()
			logger.Warn("keyword transcription stream ended, reconnecting", "delay", d.reconnectDelay)
		}

		select {
		case <-d.stop:
			return nil
		case <-ctx.Done():
			return nil
		case <-time.After(d.reconnectDelay):
		}
	}
}

func (d *Detector) listen(ctx context.Context) (<-chan struct{}, func(), error) {
	stream, err := d.recognizer.OpenStream(ctx,
		speechtotext.WithEncodingInfo(d.source.EncodingInfo()),
		speechtotext.WithKeyterms(d.keyword),
		speechtotext.WithPartialTranscriptionCallback(d.handleTranscript),
	)
	if err != nil {
		return nil, nil, err
	}

	unsubscribe := d.source.Subscribe(func(audio []byte) {
		if d.paused.Load() {
			return
		}
		if err := stream.SendAudio(audio); err != nil {
			logger.Debug("failed to forward keyword audio", "error", err)
		}
	})

	closeStream := func() {
		unsubscribe()
		if err := stream.Close(); err != nil {
			logger.Debug("failed to close keyword stream", "error", err)
		}
	}

	var streamDone <-chan struct{}
	if doner, ok := stream.(interface{ Done() <-chan struct{} }); ok {
		streamDone = doner.Done()
	}
	return streamDone, closeStream, nil
}

func (d *Detector) handleTranscript(transcript string) {
	if d.paused.Load() || !containsKeyword(transcript, d.keyword) {
		return
	}

	logger.Info("keyword detected", "keyword", d.keyword)
	d.callbackMu.RLock()
	onActivation := d.onActivation
	d.callbackMu.RUnlock()
	if onActivation != nil {
		onActivation()
	}
}

// containsKeyword reports whether the keyword appears in transcript as whole
// words, ignoring case and punctuation.
func containsKeyword(transcript, keyword string) bool {
	transcript = normalize(transcript)
	if transcript == "" || keyword == "" {
		return false
	}
	return strings.Contains(" "+transcript+" ", " "+keyword+" ")
}

func normalize(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}
