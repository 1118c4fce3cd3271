package source

import (
	"context"
	"io"
	"sync"
	"time"

	"tlesense/host/mcu"
	"tlesense/tle5012b"
)

// Local drives a tle5012b.Device in this process. The device is not safe
// for concurrent use, so every access holds mu; streaming polls it from a
// goroutine.
type Local struct {
	mu      sync.Mutex
	dev     *tle5012b.Device
	name    string
	closers []io.Closer

	samples chan mcu.Sample
	stop    chan struct{}
	done    chan struct{}
}

// NewLocal wraps a configured device. closers are released by Close.
func NewLocal(dev *tle5012b.Device, name string, closers ...io.Closer) *Local {
	return &Local{
		dev:     dev,
		name:    name,
		closers: closers,
		samples: make(chan mcu.Sample, 64),
	}
}

// Describe implements Sensor.
func (l *Local) Describe() string {
	return l.name
}

// Angle implements Sensor.
func (l *Local) Angle(ctx context.Context) (float32, error) {
	if err := ctx.Err(); err != nil {
		return tle5012b.AngleInvalid, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dev.ReadAngle()
}

// Speed implements Sensor.
func (l *Local) Speed(ctx context.Context) (int16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dev.ReadSpeed()
}

// Status implements Sensor.
func (l *Local) Status(ctx context.Context) (tle5012b.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	raw, err := l.dev.ReadStatus()
	return tle5012b.Status(raw), err
}

// ReadRegister implements Sensor.
func (l *Local) ReadRegister(ctx context.Context, addr uint16) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dev.ReadRegister(addr)
}

// StartStream polls the device every interval until StopStream or Close.
// A transport error ends the stream after reporting it as a sample.
func (l *Local) StartStream(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return mcu.ErrBadArgs
	}
	l.StopStream(ctx)
	drainSamples(l.samples)

	l.mu.Lock()
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.mu.Unlock()

	go l.stream(interval, stop, done)
	return nil
}

// StopStream implements Sensor.
func (l *Local) StopStream(ctx context.Context) error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

// drainSamples discards whatever an earlier stream left unread.
func drainSamples(ch chan mcu.Sample) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Samples implements Sensor.
func (l *Local) Samples() <-chan mcu.Sample {
	return l.samples
}

func (l *Local) stream(interval time.Duration, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint32
	for {
		s, fatal := l.sample()
		seq++
		s.Seq = seq
		select {
		case l.samples <- s:
		default:
			// Consumer is behind; drop this sample
		}
		if fatal {
			return
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// sample reads angle and speed under one lock. fatal reports a transport
// error as opposed to a sentinel angle.
func (l *Local) sample() (mcu.Sample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s mcu.Sample
	rawAngle, err := l.dev.ReadRegister(tle5012b.RegAngle)
	if err != nil {
		s.Err = err
		return s, true
	}
	rawSpeed, err := l.dev.ReadRegister(tle5012b.RegSpeed)
	if err != nil {
		s.Err = err
		return s, true
	}

	s.RawAngle = rawAngle
	s.RawSpeed = rawSpeed
	s.Speed = tle5012b.DecodeSpeed(rawSpeed)
	s.Angle, s.Err = tle5012b.DecodeAngle(rawAngle)
	return s, false
}

// Close stops streaming and releases the bus.
func (l *Local) Close() error {
	l.StopStream(context.Background())
	return closeAll(l.closers)
}
