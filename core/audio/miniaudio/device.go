package miniaudio

import (
	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-jarvis/core/audio"
)

const (
	captureChannels  = 1
	playbackChannels = 1
	sampleFormat     = malgo.FormatS16
)

// deviceConfig is the linear16 mono configuration used for both directions.
func deviceConfig(deviceType malgo.DeviceType) malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(deviceType)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Alsa.NoMMap = 1

	switch deviceType {
	case malgo.Capture:
		config.Capture.Format = sampleFormat
		config.Capture.Channels = captureChannels
		config.PerformanceProfile = malgo.LowLatency
		config.PeriodSizeInFrames = 480
		config.Periods = 3
	case malgo.Playback:
		config.Playback.Format = sampleFormat
		config.Playback.Channels = playbackChannels
		config.PeriodSizeInFrames = config.SampleRate / 10
		config.Periods = 4
	}
	return config
}

func bytesPerFrame(channels int) int {
	return malgo.SampleSizeInBytes(sampleFormat) * channels
}
