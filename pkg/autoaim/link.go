package autoaim

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialConfig configures the attitude/command link's serial device and
// reconnect policy.
type SerialConfig struct {
	Devices  []string // candidate device paths, tried round-robin on reconnect
	BaudRate int
	DataBits int
	StopBits int    // 1 or 2
	Parity   string // "none", "odd", "even"

	ReconnectPeriod time.Duration // min interval between reconnect attempts
	IMUFreshness    time.Duration // max age accepted by NextIMUForFrame
}

// DefaultSerialConfig returns a single-device, 460800-baud, 8N1
// configuration with flow control disabled.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Devices:         []string{"/dev/ttyUSB0"},
		BaudRate:        460800,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		ReconnectPeriod: time.Second,
		IMUFreshness:    10 * time.Millisecond,
	}
}

// SerialLink owns the attitude/command link's serial port plus its reader
// and reconnect goroutines. The reader runs the Framer itself; there is no
// separate parser goroutine.
type SerialLink struct {
	cfg    SerialConfig
	logger *log.Logger

	mu       sync.Mutex
	port     serial.Port
	deviceIx int
	lastOpen time.Time

	imuMu   sync.RWMutex
	lastIMU IMUSample
	haveIMU bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSerialLink opens the first configured device and starts the reader
// and reconnect-watchdog goroutines. If the initial open fails, the link
// is still returned and will keep retrying via the watchdog.
func NewSerialLink(cfg SerialConfig, logger *log.Logger) *SerialLink {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &SerialLink{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	l.tryOpen()

	l.wg.Add(2)
	go l.readLoop()
	go l.reconnectLoop()

	return l
}

func (l *SerialLink) mode() *serial.Mode {
	parity := serial.NoParity
	switch l.cfg.Parity {
	case "odd":
		parity = serial.OddParity
	case "even":
		parity = serial.EvenParity
	}
	stopBits := serial.OneStopBit
	if l.cfg.StopBits == 2 {
		stopBits = serial.TwoStopBits
	}
	dataBits := l.cfg.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	return &serial.Mode{
		BaudRate: l.cfg.BaudRate,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
	}
}

// tryOpen attempts to open the next candidate device path, cycling
// round-robin through l.cfg.Devices.
func (l *SerialLink) tryOpen() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.cfg.Devices) == 0 {
		return
	}
	device := l.cfg.Devices[l.deviceIx%len(l.cfg.Devices)]
	l.deviceIx++

	port, err := serial.Open(device, l.mode())
	if err != nil {
		l.logger.Printf("link: open %s failed: %v", device, err)
		return
	}
	l.port = port
	l.lastOpen = time.Now()
	l.logger.Printf("link: opened %s", device)
}

// reconnectLoop reopens the serial port at most once per ReconnectPeriod
// whenever the current port is nil, cycling through the device list.
func (l *SerialLink) reconnectLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.cfg.ReconnectPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			needsOpen := l.port == nil
			l.mu.Unlock()
			if needsOpen {
				l.tryOpen()
			}
		}
	}
}

// readLoop continuously feeds bytes from the open port into a Framer and
// stores each decoded IMUSample as the most recent reading.
func (l *SerialLink) readLoop() {
	defer l.wg.Done()
	framer := NewFramer()
	buf := make([]byte, 256)

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		l.mu.Lock()
		port := l.port
		l.mu.Unlock()
		if port == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		n, err := port.Read(buf)
		if err != nil {
			l.logger.Printf("link: read error: %v", err)
			l.mu.Lock()
			l.port.Close()
			l.port = nil
			l.mu.Unlock()
			continue
		}
		if n == 0 {
			continue
		}
		framer.Feed(buf[:n])

		for {
			sample, ok := framer.Next()
			if !ok {
				break
			}
			sample.Timestamp = time.Now()
			l.imuMu.Lock()
			l.lastIMU = sample
			l.haveIMU = true
			l.imuMu.Unlock()
		}
	}
}

// NextIMUNoWait returns the most recent stamped IMU sample, if any.
func (l *SerialLink) NextIMUNoWait() (IMUSample, bool) {
	l.imuMu.RLock()
	defer l.imuMu.RUnlock()
	if !l.haveIMU {
		return IMUSample{}, false
	}
	return l.lastIMU, true
}

// NextIMUForFrame returns the most recent IMU sample if it is within
// cfg.IMUFreshness of captureTime; otherwise ok is false and the caller
// is expected to drop the frame.
func (l *SerialLink) NextIMUForFrame(captureTime time.Time) (IMUSample, bool) {
	sample, ok := l.NextIMUNoWait()
	if !ok {
		return IMUSample{}, false
	}
	age := captureTime.Sub(sample.Timestamp)
	if age < 0 {
		age = -age
	}
	if age > l.cfg.IMUFreshness {
		return IMUSample{}, false
	}
	return sample, true
}

// SendCommand writes a FireCommand to the link. Best-effort: failures are
// logged and the error is swallowed, never surfaced to the pipeline.
func (l *SerialLink) SendCommand(cmd FireCommand) {
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()

	if port == nil {
		l.logger.Printf("link: send dropped, no open port")
		return
	}

	frame := EncodeFireCommand(cmd)
	if _, err := port.Write(frame); err != nil {
		l.logger.Printf("link: write failed: %v", err)
		l.mu.Lock()
		if l.port == port {
			l.port.Close()
			l.port = nil
		}
		l.mu.Unlock()
	}
}

// Close stops the link's goroutines and releases the serial port.
func (l *SerialLink) Close() error {
	l.cancel()
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port != nil {
		err := l.port.Close()
		l.port = nil
		if err != nil {
			return fmt.Errorf("closing serial port: %w", err)
		}
	}
	return nil
}
