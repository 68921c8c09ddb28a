package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"

	"go.bug.st/serial"
)

const defaultReopenDelay = 2 * time.Second

// Opener returns a fresh connection to the device.
type Opener func() (io.ReadWriteCloser, error)

// SerialOpener opens a serial port at the given baud rate.
func SerialOpener(port string, baudRate int) Opener {
	return func() (io.ReadWriteCloser, error) {
		return serial.Open(port, &serial.Mode{BaudRate: baudRate})
	}
}

// SerialSource owns the device connection. A single pump goroutine reads
// lines and hands each one to the readers waiting for its sensor code, so
// concurrent device tasks never compete for the port.
type SerialSource struct {
	open        Opener
	reopenDelay time.Duration
	log         *logger.Logger

	mu      sync.Mutex
	port    io.ReadWriteCloser
	waiters map[string][]chan string

	writeMu sync.Mutex
}

func NewSerialSource(open Opener, log *logger.Logger) *SerialSource {
	return &SerialSource{
		open:        open,
		reopenDelay: defaultReopenDelay,
		log:         log,
		waiters:     make(map[string][]chan string),
	}
}

// Run keeps the port open until ctx is cancelled, reopening it after failures.
func (s *SerialSource) Run(ctx context.Context) {
	for {
		port, err := s.open()
		if err != nil {
			s.log.Warnw("serial_open_failed", "err", err)
			if !sleepCtx(ctx, s.reopenDelay) {
				return
			}
			continue
		}

		s.setPort(port)
		s.log.Infow("serial_port_opened")

		stop := context.AfterFunc(ctx, func() { _ = port.Close() })
		err = s.pump(port)
		stop()

		s.setPort(nil)
		_ = port.Close()

		if ctx.Err() != nil {
			s.log.Infow("serial_port_closed")
			return
		}
		s.log.Warnw("serial_port_lost", "err", err)
		if !sleepCtx(ctx, s.reopenDelay) {
			return
		}
	}
}

func (s *SerialSource) pump(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.route(line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (s *SerialSource) route(line string) {
	code, _, ok := strings.Cut(line, ":")
	if !ok {
		s.log.Warnw("serial_line_malformed", "line", line)
		return
	}
	code = strings.TrimSpace(code)

	s.mu.Lock()
	ws := s.waiters[code]
	delete(s.waiters, code)
	s.mu.Unlock()

	if len(ws) == 0 {
		s.log.Debugw("serial_line_unclaimed", "code", code)
		return
	}
	for _, ch := range ws {
		ch <- line
	}
}

// setPort swaps the current connection. Dropping the port fails every
// pending reader right away.
func (s *SerialSource) setPort(port io.ReadWriteCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.port = port
	if port != nil {
		return
	}
	for code, ws := range s.waiters {
		for _, ch := range ws {
			close(ch)
		}
		delete(s.waiters, code)
	}
}

// ReadLine waits for the next line the device emits for code.
func (s *SerialSource) ReadLine(ctx context.Context, code string) (string, error) {
	ch := make(chan string, 1)

	s.mu.Lock()
	if s.port == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("read %s: %w: serial port not open", code, models.ErrTransport)
	}
	s.waiters[code] = append(s.waiters[code], ch)
	s.mu.Unlock()

	select {
	case line, ok := <-ch:
		if !ok {
			return "", fmt.Errorf("read %s: %w: serial port closed", code, models.ErrTransport)
		}
		return line, nil
	case <-ctx.Done():
		s.dropWaiter(code, ch)
		return "", models.WrapTransport("read "+code, ctx.Err())
	}
}

func (s *SerialSource) dropWaiter(code string, ch chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.waiters[code]
	for i, w := range ws {
		if w == ch {
			s.waiters[code] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(s.waiters[code]) == 0 {
		delete(s.waiters, code)
	}
}

// WriteCommand sends cmd followed by a newline.
func (s *SerialSource) WriteCommand(cmd string) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return fmt.Errorf("write command: %w: serial port not open", models.ErrTransport)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(port, cmd+"\n"); err != nil {
		return fmt.Errorf("write command: %w: %v", models.ErrTransport, err)
	}
	return nil
}

// Connected reports whether the port is currently open.
func (s *SerialSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
