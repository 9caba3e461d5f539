package main

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

const (
	deviceSampleRate = 24000
	deviceChannels   = 1
)

// speaker plays PCM16 mono audio through the default output device. It
// satisfies the playback queue's Sink: Play blocks until the block has
// drained or Cancel clears it.
type speaker struct {
	device *malgo.Device

	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	cancelled bool
}

func newSpeaker(actx *malgo.AllocatedContext) (*speaker, error) {
	s := &speaker{}
	s.cond = sync.NewCond(&s.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.PeriodSizeInMilliseconds = 20
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = deviceChannels
	deviceConfig.SampleRate = deviceSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(actx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			s.mu.Lock()
			n := copy(outputSamples, s.buf)
			s.buf = s.buf[n:]
			for i := n; i < len(outputSamples); i++ {
				outputSamples[i] = 0
			}
			if len(s.buf) == 0 {
				s.cond.Broadcast()
			}
			s.mu.Unlock()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}

	s.device = device
	return s, nil
}

// Play appends one PCM16 block and waits until the device consumes it.
// A cancellation that arrived since the last Play latches: the block is
// discarded without rendering a single sample.
func (s *speaker) Play(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		s.cancelled = false
		return
	}
	s.buf = append(s.buf, pcm...)
	for len(s.buf) > 0 && !s.cancelled {
		s.cond.Wait()
	}
	s.cancelled = false
}

// Cancel drops any buffered audio and releases a blocked Play.
func (s *speaker) Cancel() {
	s.mu.Lock()
	s.buf = nil
	s.cancelled = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *speaker) Close() {
	s.Cancel()
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
	}
}

// microphone captures PCM16 mono blocks from the default input device
// and hands copies to onBlock. The callback must not retain the slice
// beyond its own copy.
type microphone struct {
	device *malgo.Device
}

func newMicrophone(actx *malgo.AllocatedContext, onBlock func(pcm []byte)) (*microphone, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = 20
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = deviceChannels
	deviceConfig.SampleRate = deviceSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(actx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			block := make([]byte, len(inputSamples))
			copy(block, inputSamples)
			onBlock(block)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	return &microphone{device: device}, nil
}

func (m *microphone) Close() {
	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
	}
}
