package deepgram

import (
	"fmt"
	"slices"

	"github.com/koscakluka/ema-jarvis/core/audio"
)

// Deepgram's names for raw audio encodings.
const (
	encodingLinear16 encodingFormat = "linear16"
	encodingALaw     encodingFormat = "alaw"
	encodingMulaw    encodingFormat = "mulaw"
)

// companded encodings are telephony formats and only accepted at 8kHz.
const compandedSampleRate = 8000

var supportedSampleRates = []int{8000, 16000, 24000, 32000, 48000}

type encodingFormat string

func (e encodingFormat) Name() string { return string(e) }

type encodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

// convertEncoding maps the capture encoding to the query parameters Deepgram
// accepts for raw audio.
func convertEncoding(encoding audio.EncodingInfo) (encodingInfo, error) {
	if !slices.Contains(supportedSampleRates, encoding.SampleRate) {
		return encodingInfo{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	var format encodingFormat
	switch encoding.Format {
	case audio.EncodingLinear16:
		format = encodingLinear16
	case audio.EncodingALaw:
		format = encodingALaw
	case audio.EncodingMulaw:
		format = encodingMulaw
	default:
		return encodingInfo{}, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	if format != encodingLinear16 && encoding.SampleRate != compandedSampleRate {
		return encodingInfo{}, fmt.Errorf("%s audio must be sampled at %d Hz, got %d", format, compandedSampleRate, encoding.SampleRate)
	}

	return encodingInfo{SampleRate: encoding.SampleRate, Format: format}, nil
}
