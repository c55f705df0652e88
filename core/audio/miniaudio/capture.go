package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/memoir-voice/core/audio"
)

type captureClient struct {
	device *malgo.Device
	config malgo.DeviceConfig

	captured []byte
	target   int
	full     chan struct{}

	mu       sync.Mutex
	bufferMu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * encoding.Channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(encoding.SampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(encoding.Channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = uint32(encoding.SampleRate / 50)
	c.config.Periods = 3

	var err error
	c.device, err = malgo.InitDevice(audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.append(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) append(samples []byte) {
	c.bufferMu.Lock()
	defer c.bufferMu.Unlock()
	if c.full == nil {
		return
	}

	c.captured = append(c.captured, samples...)
	if len(c.captured) >= c.target {
		select {
		case c.full <- struct{}{}:
		default:
		}
	}
}

// Start begins capturing and returns a channel signalled once target bytes
// have been captured.
func (c *captureClient) Start(target int) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, fmt.Errorf("device not initialized")
	}

	full := make(chan struct{}, 1)
	c.bufferMu.Lock()
	c.captured = make([]byte, 0, target)
	c.target = target
	c.full = full
	c.bufferMu.Unlock()

	if !c.device.IsStarted() {
		if err := c.device.Start(); err != nil {
			return nil, fmt.Errorf("failed to start capture device: %w", err)
		}
	}
	return full, nil
}

func (c *captureClient) Stop() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.device != nil && c.device.IsStarted() {
		if stopErr := c.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
	}

	c.bufferMu.Lock()
	captured := c.captured
	c.captured = nil
	c.full = nil
	c.bufferMu.Unlock()

	return captured, err
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}
