package miniaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-jarvis/core/audio"
)

var errPlaybackNotStarted = errors.New("playback device not started")

// Client is the default microphone and speaker driven through miniaudio. It
// is both an audio.Input and an audio.Output.
type Client struct {
	audioContext *malgo.AllocatedContext
	capture      capture
	playback     playback
}

func NewClient() (*Client, error) {
	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	c := &Client{audioContext: audioContext}
	if err := c.playback.init(audioContext); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.playback.start(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.capture.init(audioContext); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// Stream captures microphone audio until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.capture.start(onAudio); err != nil {
		return err
	}

	<-ctx.Done()
	return c.capture.stop()
}

func (c *Client) Close() {
	c.capture.uninit()
	c.playback.uninit()
	if err := c.audioContext.Uninit(); err != nil {
		logger.Warn("failed to uninitialize audio context", "error", err)
	}
	c.audioContext.Free()
}

func (c *Client) SendAudio(audio []byte) error {
	if !c.playback.started() {
		return errPlaybackNotStarted
	}
	c.playback.queue.push(audio)
	return nil
}

func (c *Client) ClearBuffer() {
	c.playback.queue.clear()
}

// AwaitMark blocks until everything sent before the call has been played or
// the buffer has been cleared.
func (c *Client) AwaitMark() error {
	<-c.playback.queue.mark()
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
