// Package mcu talks to the sensor firmware over its serial link.
package mcu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tlesense/protocol"
	"tlesense/tle5012b"
)

// DefaultTimeout bounds a request whose context carries no deadline.
const DefaultTimeout = time.Second

var (
	ErrClosed = errors.New("client closed")

	// Firmware error codes, reachable with errors.Is on a *DeviceError.
	ErrUnknownCommand = errors.New("firmware does not know the command")
	ErrTransport      = errors.New("sensor transfer failed")
	ErrBadArgs        = errors.New("firmware rejected the arguments")
)

// DeviceError is an error message returned by the firmware.
type DeviceError struct {
	Cmd  uint16
	Code uint32
}

func (e *DeviceError) Error() string {
	name := protocol.Name(e.Cmd)
	if name == "" {
		name = fmt.Sprintf("command %d", e.Cmd)
	}
	return fmt.Sprintf("%s: %v", name, e.Unwrap())
}

func (e *DeviceError) Unwrap() error {
	switch e.Code {
	case protocol.ErrCodeUnknownCommand:
		return ErrUnknownCommand
	case protocol.ErrCodeTransport:
		return ErrTransport
	case protocol.ErrCodeBadArgs:
		return ErrBadArgs
	default:
		return fmt.Errorf("error code %d", e.Code)
	}
}

// Sample is one streamed measurement. Err is set when the angle word is the
// failure sentinel or the stream was aborted by the firmware.
type Sample struct {
	Seq      uint32
	RawAngle uint16
	RawSpeed uint16
	Angle    float32
	Speed    int16
	Err      error
}

// Client issues requests to the firmware. Requests are serialised; one
// background goroutine decodes everything the firmware sends.
type Client struct {
	port    io.ReadWriteCloser
	logger  *zap.SugaredLogger
	timeout time.Duration

	// reqMu serialises requests so that a response belongs to the single
	// outstanding command.
	reqMu sync.Mutex
	seq   uint8

	responses chan protocol.Message
	samples   chan Sample
	// streaming gates stream_sample delivery; samples that arrive while
	// it is clear are dropped.
	streaming atomic.Bool

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout changes the per-request default deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient starts a client on port. Close releases the port.
func NewClient(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		port:      port,
		logger:    zap.NewNop().Sugar(),
		timeout:   DefaultTimeout,
		responses: make(chan protocol.Message, 16),
		samples:   make(chan Sample, 64),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c
}

// Close stops the reader and closes the port.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopChan)
		err = c.port.Close()
		<-c.doneChan
	})
	return err
}

// Samples delivers streamed measurements. When the consumer falls behind
// the oldest samples are dropped.
func (c *Client) Samples() <-chan Sample {
	return c.samples
}

// Identify returns the firmware version string.
func (c *Client) Identify(ctx context.Context) (string, error) {
	msg, err := c.request(ctx, protocol.MsgIdentifyResponse, protocol.MsgIdentify)
	if err != nil {
		return "", err
	}
	return string(msg.Data), nil
}

// ReadRegister reads the register selected by the command word addr.
func (c *Client) ReadRegister(ctx context.Context, addr uint16) (uint16, error) {
	msg, err := c.request(ctx, protocol.MsgRegisterValue, protocol.MsgReadRegister, uint32(addr))
	if err != nil {
		return 0, err
	}
	if got, _ := msg.Arg("addr"); got != uint32(addr) {
		return 0, fmt.Errorf("register_value for 0x%04X, expected 0x%04X", got, addr)
	}
	value, _ := msg.Arg("value")
	return uint16(value), nil
}

// Angle returns the angle in degrees. A sentinel read yields
// tle5012b.AngleInvalid and tle5012b.ErrNoReading.
func (c *Client) Angle(ctx context.Context) (float32, error) {
	raw, err := c.query(ctx, protocol.MsgQueryAngle, protocol.MsgAngleValue)
	if err != nil {
		return tle5012b.AngleInvalid, err
	}
	return tle5012b.DecodeAngle(raw)
}

// Speed returns the signed raw speed code.
func (c *Client) Speed(ctx context.Context) (int16, error) {
	raw, err := c.query(ctx, protocol.MsgQuerySpeed, protocol.MsgSpeedValue)
	if err != nil {
		return 0, err
	}
	return tle5012b.DecodeSpeed(raw), nil
}

// Status returns the STAT register.
func (c *Client) Status(ctx context.Context) (tle5012b.Status, error) {
	raw, err := c.query(ctx, protocol.MsgQueryStatus, protocol.MsgStatusValue)
	return tle5012b.Status(raw), err
}

// StartStream asks the firmware to send a sample every interval. Samples
// arrive on Samples, numbered from 1. Unread samples of an earlier stream
// are discarded.
func (c *Client) StartStream(ctx context.Context, interval time.Duration) error {
	ms := interval.Milliseconds()
	if ms < 1 {
		return fmt.Errorf("stream interval %v below 1ms: %w", interval, ErrBadArgs)
	}
	if ms > math.MaxUint32 {
		return fmt.Errorf("stream interval %v too long: %w", interval, ErrBadArgs)
	}
	if c.streaming.Load() {
		if err := c.StopStream(ctx); err != nil {
			return err
		}
	}
	c.drainSamples()
	c.streaming.Store(true)
	if err := c.send(ctx, protocol.MsgStartStream, uint32(ms)); err != nil {
		c.streaming.Store(false)
		return err
	}
	return nil
}

// StopStream stops periodic samples. It returns once every sample the
// firmware sent before stopping has been received and discarded.
func (c *Client) StopStream(ctx context.Context) error {
	c.streaming.Store(false)
	if err := c.send(ctx, protocol.MsgStopStream); err != nil {
		return err
	}
	// The firmware answers in order, so the identify response follows
	// the last sample.
	if _, err := c.request(ctx, protocol.MsgIdentifyResponse, protocol.MsgIdentify); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	c.drainSamples()
	return nil
}

func (c *Client) drainSamples() {
	for {
		select {
		case <-c.samples:
		default:
			return
		}
	}
}

func (c *Client) query(ctx context.Context, cmd, response uint16) (uint16, error) {
	msg, err := c.request(ctx, response, cmd)
	if err != nil {
		return 0, err
	}
	raw, _ := msg.Arg("raw")
	return uint16(raw), nil
}

// send writes a command that has no response.
func (c *Client) send(ctx context.Context, cmd uint16, args ...uint32) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	return c.write(ctx, cmd, args...)
}

// request writes cmd and waits for a response with ID expect or an error
// message naming cmd.
func (c *Client) request(ctx context.Context, expect uint16, cmd uint16, args ...uint32) (protocol.Message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.drainResponses()
	if err := c.write(ctx, cmd, args...); err != nil {
		return protocol.Message{}, err
	}

	for {
		select {
		case msg := <-c.responses:
			if msg.ID == expect {
				return msg, nil
			}
			if msg.ID == protocol.MsgError {
				failed, _ := msg.Arg("cmd")
				code, _ := msg.Arg("code")
				if uint16(failed) == cmd {
					return msg, &DeviceError{Cmd: cmd, Code: code}
				}
			}
			c.logger.Debugw("ignoring unexpected response", "name", msg.Name, "waiting_for", protocol.Name(expect))

		case <-ctx.Done():
			return protocol.Message{}, fmt.Errorf("%s: %w", protocol.Name(cmd), ctx.Err())

		case <-c.stopChan:
			return protocol.Message{}, ErrClosed
		}
	}
}

func (c *Client) write(ctx context.Context, cmd uint16, args ...uint32) error {
	select {
	case <-c.stopChan:
		return ErrClosed
	default:
	}

	frame, err := protocol.AppendFrame(nil, protocol.SeqDest|c.seq, protocol.AppendMessage(nil, cmd, args...))
	if err != nil {
		return err
	}
	c.seq = (c.seq + 1) & protocol.SeqMask

	c.logger.Debugw("send", "cmd", protocol.Name(cmd), "args", args)
	n, err := c.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write %s: %w", protocol.Name(cmd), err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(frame))
	}
	return ctx.Err()
}

// drainResponses discards responses left over from a timed-out request.
func (c *Client) drainResponses() {
	for {
		select {
		case msg := <-c.responses:
			c.logger.Debugw("dropping stale response", "name", msg.Name)
		default:
			return
		}
	}
}

// readLoop continuously reads from the port and routes decoded messages
func (c *Client) readLoop() {
	defer close(c.doneChan)

	decoder := protocol.NewDecoder(0)
	buffer := make([]byte, 256)

	for {
		n, err := c.port.Read(buffer)
		if n > 0 {
			decoder.Write(buffer[:n])
			c.processFrames(decoder)
		}

		select {
		case <-c.stopChan:
			return
		default:
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				// Read timeout on an idle serial port
				time.Sleep(time.Millisecond)
				continue
			}
			if errors.Is(err, io.ErrClosedPipe) {
				return
			}
			c.logger.Warnw("serial read failed", "error", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (c *Client) processFrames(decoder *protocol.Decoder) {
	for {
		frame, ok := decoder.Next()
		if !ok {
			return
		}
		msgs, err := protocol.DecodeMessages(frame.Payload)
		if err != nil {
			c.logger.Warnw("bad message from firmware", "error", err, "payload", frame.Payload)
		}
		for _, msg := range msgs {
			c.dispatch(msg)
		}
	}
}

// dispatch routes a message to the sample or response channel
func (c *Client) dispatch(msg protocol.Message) {
	if msg.ID == protocol.MsgStreamSample {
		if !c.streaming.Load() {
			seq, _ := msg.Arg("seq")
			c.logger.Debugw("dropping sample of stopped stream", "seq", seq)
			return
		}
		c.pushSample(sampleFromMessage(msg))
		return
	}
	if msg.ID == protocol.MsgError {
		if cmd, _ := msg.Arg("cmd"); uint16(cmd) == protocol.MsgStartStream {
			if !c.streaming.Load() {
				return
			}
			code, _ := msg.Arg("code")
			c.pushSample(Sample{Err: &DeviceError{Cmd: protocol.MsgStartStream, Code: code}})
			return
		}
	}

	select {
	case c.responses <- msg:
	default:
		// Response channel full, drop oldest
		select {
		case <-c.responses:
		default:
		}
		c.responses <- msg
	}
}

func (c *Client) pushSample(s Sample) {
	select {
	case c.samples <- s:
	default:
		select {
		case <-c.samples:
		default:
		}
		c.samples <- s
	}
}

func sampleFromMessage(msg protocol.Message) Sample {
	seq, _ := msg.Arg("seq")
	angleRaw, _ := msg.Arg("angle_raw")
	speedRaw, _ := msg.Arg("speed_raw")

	s := Sample{
		Seq:      seq,
		RawAngle: uint16(angleRaw),
		RawSpeed: uint16(speedRaw),
		Speed:    tle5012b.DecodeSpeed(uint16(speedRaw)),
	}
	s.Angle, s.Err = tle5012b.DecodeAngle(s.RawAngle)
	return s
}
