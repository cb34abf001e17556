package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var errDeviceNotInitialized = errors.New("device not initialized")

// capture reads the default microphone. Frames are copied before they are
// handed on, malgo reuses its buffer.
type capture struct {
	mu     sync.Mutex
	device *malgo.Device

	onAudio atomic.Pointer[func(audio []byte)]
}

func (c *capture) init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frameSize := bytesPerFrame(captureChannels)
	device, err := malgo.InitDevice(audioContext.Context, deviceConfig(malgo.Capture), malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * frameSize
			if n == 0 || len(input) < n {
				return
			}
			onAudio := c.onAudio.Load()
			if onAudio == nil {
				return
			}
			frame := make([]byte, n)
			copy(frame, input[:n])
			(*onAudio)(frame)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.device = device
	return nil
}

func (c *capture) start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.device == nil:
		return errDeviceNotInitialized
	case c.device.IsStarted():
		return nil
	}

	c.onAudio.Store(&onAudio)
	if err := c.device.Start(); err != nil {
		c.onAudio.Store(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *capture) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.device == nil:
		return errDeviceNotInitialized
	case !c.device.IsStarted():
		return nil
	}

	defer c.onAudio.Store(nil)
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *capture) uninit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.onAudio.Store(nil)
}
