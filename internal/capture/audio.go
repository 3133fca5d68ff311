package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/threat"
)

const (
	captureSampleRate  = 44100
	captureNumChannels = 1

	// amplitudeScale maps the mean absolute S16 sample value onto the
	// 0..255 range the backend's audio model expects, matching the byte
	// frequency-bin averages of the original feature extractor.
	amplitudeScale = 255.0 / 32768.0

	clippingThreshold = 32000
)

// audioCapture wraps a malgo capture device and maintains a rolling average
// amplitude updated from the device data callback.
type audioCapture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	average float64 // exponential moving average of block amplitude
	primed  bool

	levelChan   chan<- LevelData
	releaseOnce sync.Once
}

// AcquireAudio opens the named capture device, or the system default when
// deviceName is empty, and starts sampling immediately. The optional
// levelChan receives best-effort VU updates; sends never block.
func AcquireAudio(deviceName string, levelChan chan<- LevelData) (Capture, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, wrapAcquireError(fmt.Errorf("initializing audio context: %w", err))
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = captureNumChannels
	deviceConfig.SampleRate = captureSampleRate
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			_ = mctx.Uninit()
			mctx.Free()
			return nil, wrapAcquireError(fmt.Errorf("enumerating capture devices: %w", err))
		}
		found := false
		for i := range infos {
			if strings.Contains(infos[i].Name(), deviceName) {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			_ = mctx.Uninit()
			mctx.Free()
			return nil, errors.New(fmt.Errorf("%w: no capture device matching %q", ErrDeviceUnavailable, deviceName)).
				Component("capture").
				Category(errors.CategoryCapture).
				Build()
		}
	}

	ac := &audioCapture{ctx: mctx, levelChan: levelChan}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, frameCount uint32) {
			ac.consume(inputSamples, frameCount)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, wrapAcquireError(fmt.Errorf("opening capture device: %w", err))
	}
	ac.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, wrapAcquireError(fmt.Errorf("starting capture device: %w", err))
	}

	logging.Info("audio capture started", "device", deviceName, "sample_rate", captureSampleRate)
	return ac, nil
}

// consume runs on the device callback goroutine. It folds the block's mean
// absolute amplitude into the rolling average and publishes VU feedback.
func (ac *audioCapture) consume(samples []byte, frameCount uint32) {
	if frameCount == 0 || len(samples) < 2 {
		return
	}

	var sum float64
	clipping := false
	n := len(samples) / 2
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(samples[i*2:]))
		abs := math.Abs(float64(sample))
		if abs >= clippingThreshold {
			clipping = true
		}
		sum += abs
	}
	blockAverage := (sum / float64(n)) * amplitudeScale

	ac.mu.Lock()
	if !ac.primed {
		ac.average = blockAverage
		ac.primed = true
	} else {
		// Light smoothing so single quiet callbacks don't zero the feature.
		ac.average = ac.average*0.7 + blockAverage*0.3
	}
	average := ac.average
	ac.mu.Unlock()

	if ac.levelChan != nil {
		level := int(math.Min(average/255.0*100.0, 100))
		select {
		case ac.levelChan <- LevelData{Level: level, Clipping: clipping}:
		default:
			// VU feedback is cosmetic, drop when the consumer lags.
		}
	}
}

func (ac *audioCapture) Kind() threat.InputKind {
	return threat.InputAudio
}

// Snapshot returns the current rolling average amplitude. It never touches
// the device and cannot block on I/O.
func (ac *audioCapture) Snapshot() (Feature, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return Feature{Kind: threat.InputAudio, Volume: ac.average}, nil
}

// Release stops the device and frees the context. Safe to call repeatedly.
func (ac *audioCapture) Release() {
	ac.releaseOnce.Do(func() {
		if ac.device != nil {
			ac.device.Uninit()
		}
		if ac.ctx != nil {
			_ = ac.ctx.Uninit()
			ac.ctx.Free()
		}
		logging.Info("audio capture released")
	})
}

// wrapAcquireError maps low-level device errors onto the two sentinel
// acquisition errors the session layer understands.
func wrapAcquireError(err error) error {
	sentinel := ErrDeviceUnavailable
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") {
		sentinel = ErrPermissionDenied
	}
	return errors.New(fmt.Errorf("%w: %w", sentinel, err)).
		Component("capture").
		Category(errors.CategoryCapture).
		Build()
}
