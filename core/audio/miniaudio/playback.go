package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// playback feeds the default speaker from a playbackQueue.
type playback struct {
	mu     sync.Mutex
	device *malgo.Device

	queue playbackQueue
}

func (p *playback) init(audioContext *malgo.AllocatedContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	device, err := malgo.InitDevice(audioContext.Context, deviceConfig(malgo.Playback), malgo.DeviceCallbacks{
		Data: p.fill(bytesPerFrame(playbackChannels)),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	p.device = device
	return nil
}

func (p *playback) fill(frameSize int) malgo.DataProc {
	return func(output, _ []byte, frameCount uint32) {
		n := min(int(frameCount)*frameSize, len(output))
		p.queue.pull(output[:n])
	}
}

func (p *playback) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return errDeviceNotInitialized
	}
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (p *playback) started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device != nil && p.device.IsStarted()
}

func (p *playback) uninit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	p.queue.clear()
}
