package arduino

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog/log"
)

const (
	stateRequest      = "STATE?"
	stateReplyPrefix  = "STATE "
	stateReadAttempts = 10
)

// settleDelay gives the Nano time to finish its reset after the port opens.
var settleDelay = 2 * time.Second

var stateReadTimeout = 500 * time.Millisecond

var openPort = func(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	return serial.Open(opts)
}

var listDeviceNames = func() []string {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		log.Error().Err(err).Msg("Failed to list /dev for serial detection")
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Controller owns the single serial connection to the relay board. All
// operations are serialized behind its mutex so the poller loop, the
// actuator loop and manual web commands cannot interleave on the wire.
// Transport failures are soft: commands report a boolean, queries report
// nil, and the port is reopened lazily on the next call.
type Controller struct {
	mu   sync.Mutex
	port string
	baud uint
	conn io.ReadWriteCloser
	rx   []byte
}

// New builds a controller and attempts a first open. A missing or
// unopenable device is not fatal; the link stays closed until a later
// call manages to reopen it.
func New(port string, baud uint) *Controller {
	c := &Controller{port: port, baud: baud}
	c.mu.Lock()
	c.openSerial()
	c.mu.Unlock()
	return c
}

// Port reports the device path the link is currently bound to, or empty
// when no port has ever been opened.
func (c *Controller) Port() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.port
}

func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConn()
}

// SendLine writes a single newline-terminated command. It fails only
// when the link cannot be brought up or the write itself errors.
func (c *Controller) SendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLineLocked(line)
}

// ReadLine waits up to timeout for one terminated line from the device.
// A timeout is reported as absence, not as an error.
func (c *Controller) ReadLine(timeout time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readLineLocked(timeout)
}

// QueryState asks the board for its relay state and parses the reply.
// Unrelated chatter is skipped for a bounded number of reads. Any
// failure yields (nil, nil) rather than an error.
func (c *Controller) QueryState() (inverter, charger *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLineLocked(stateRequest); err != nil {
		log.Warn().Err(err).Msg("State query send failed")
		return nil, nil
	}
	for i := 0; i < stateReadAttempts; i++ {
		line, ok := c.readLineLocked(stateReadTimeout)
		if !ok {
			continue
		}
		if inv, ch, parsed := parseStateLine(line); parsed {
			return &inv, &ch
		}
	}
	return nil, nil
}

func (c *Controller) SetInverter(enabled bool) bool {
	return c.command(fmt.Sprintf("ON %d", boolToInt(enabled)))
}

func (c *Controller) SetCharger(enabled bool) bool {
	return c.command(fmt.Sprintf("CH %d", boolToInt(enabled)))
}

func (c *Controller) SetBoth(enabled bool) bool {
	return c.command(fmt.Sprintf("ALL %d", boolToInt(enabled)))
}

func (c *Controller) command(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sendLineLocked(line); err != nil {
		log.Warn().Err(err).Str("command", line).Msg("Device command failed")
		return false
	}
	log.Debug().Str("command", line).Msg("Device command sent")
	return true
}

func (c *Controller) openSerial() {
	port := c.port
	if port == "" {
		port = detectPort()
	}
	if port == "" {
		log.Warn().Msg("No serial device found for relay board")
		return
	}

	conn, err := openPort(serial.OpenOptions{
		PortName:              port,
		BaudRate:              c.baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		log.Error().Err(err).Str("port", port).Msg("Failed to open serial port")
		return
	}

	c.conn = conn
	c.port = port
	c.rx = c.rx[:0]
	time.Sleep(settleDelay)
	log.Info().Str("port", port).Uint("baud", c.baud).Msg("Connected to relay board")
}

func (c *Controller) ensureOpenLocked() bool {
	if c.conn == nil {
		c.openSerial()
	}
	return c.conn != nil
}

func (c *Controller) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.rx = c.rx[:0]
}

func (c *Controller) sendLineLocked(line string) error {
	if !c.ensureOpenLocked() {
		return fmt.Errorf("serial link not open")
	}
	if _, err := c.conn.Write([]byte(strings.TrimSpace(line) + "\n")); err != nil {
		c.dropConn()
		return fmt.Errorf("serial write failed: %w", err)
	}
	return nil
}

func (c *Controller) readLineLocked(timeout time.Duration) (string, bool) {
	if !c.ensureOpenLocked() {
		return "", false
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 64)
	for {
		if line, ok := c.takeLine(); ok {
			return line, true
		}
		if time.Now().After(deadline) {
			return "", false
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.rx = append(c.rx, buf[:n]...)
			continue
		}
		if err != nil && err != io.EOF {
			log.Warn().Err(err).Msg("Serial read failed, dropping connection")
			c.dropConn()
			return "", false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// takeLine pops the first complete line from the receive buffer.
func (c *Controller) takeLine() (string, bool) {
	for i, b := range c.rx {
		if b == '\n' {
			line := strings.TrimSpace(string(c.rx[:i]))
			c.rx = c.rx[i+1:]
			return line, true
		}
	}
	return "", false
}

// parseStateLine interprets a "STATE ON=x CH=y" reply.
func parseStateLine(line string) (inverter, charger, ok bool) {
	if !strings.HasPrefix(line, stateReplyPrefix) {
		return false, false, false
	}
	return strings.Contains(line, "ON=1"), strings.Contains(line, "CH=1"), true
}

// detectPort picks the first USB-serial adapter that looks like the
// Nano's, preferring ACM over USB converters.
func detectPort() string {
	names := listDeviceNames()
	for _, pattern := range []string{"ttyACM", "ttyUSB"} {
		for _, name := range names {
			if strings.Contains(name, pattern) {
				return "/dev/" + name
			}
		}
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
