// Package control reads operator commands from the serial console.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"go.bug.st/serial"
)

// Open returns the control channel reader: the configured UART, or stdin
// when no port is set.
func Open(cfg config.ControlConfig) (io.ReadCloser, error) {
	if cfg.SerialPort == "" {
		return io.NopCloser(os.Stdin), nil
	}

	port, err := serial.Open(cfg.SerialPort, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.SerialPort, err)
	}
	logging.Component("control").Infof("Listening on %s at %d baud", cfg.SerialPort, cfg.BaudRate)
	return port, nil
}

// Listener turns whitespace separated tokens into enrollment requests.
// Requests that arrive before the previous one was consumed are merged.
type Listener struct {
	token    string
	requests chan struct{}
	done     chan struct{}
	once     sync.Once
	src      io.ReadCloser
}

// Listen starts reading src in its own goroutine. The reader stops when
// src reaches EOF, fails, or ctx is cancelled, which also closes src.
func Listen(ctx context.Context, src io.ReadCloser, token string) *Listener {
	l := &Listener{
		token:    token,
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
		src:      src,
	}

	go l.read()
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-l.done:
		}
	}()

	return l
}

func (l *Listener) read() {
	defer close(l.done)
	log := logging.Component("control")

	scanner := bufio.NewScanner(l.src)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		word := scanner.Text()
		if !strings.EqualFold(word, l.token) {
			log.Debugf("Ignoring token %q", word)
			continue
		}
		select {
		case l.requests <- struct{}{}:
			log.Info("Enrollment requested")
		default:
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("Control channel closed: %v", err)
	}
}

// Requested reports whether an enrollment request arrived since the last
// call. It never blocks.
func (l *Listener) Requested() bool {
	select {
	case <-l.requests:
		return true
	default:
		return false
	}
}

// Done is closed when the reader goroutine exits.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Close closes the underlying reader.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.src.Close()
	})
	return err
}
