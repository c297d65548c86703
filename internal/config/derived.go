package config

import (
	"time"

	"visualizer/internal/frame"
)

// CaptureCapacity returns the capture ring size in bytes: two frames, so one
// full frame can accumulate while the previous one is being read.
func (c *Config) CaptureCapacity() int {
	return 2 * c.Audio.FrameSize * frame.BytesPerSample
}

// DeviceBufferFrames returns the number of frames requested per device
// callback: half an analysis frame, or a quarter in low latency mode.
func (c *Config) DeviceBufferFrames() int {
	if c.Audio.LowLatency {
		return max(c.Audio.FrameSize/4, 1)
	}
	return max(c.Audio.FrameSize/2, 1)
}

// DeviceBufferPeriod returns how much audio one device callback carries.
func (c *Config) DeviceBufferPeriod() time.Duration {
	if c.Audio.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.DeviceBufferFrames()) / c.Audio.SampleRate * float64(time.Second))
}

