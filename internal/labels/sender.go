package labels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.bug.st/serial"
)

// ErrUnreachable marks failures that happened before any label was sent.
// Only those are safe to retry.
var ErrUnreachable = errors.New("printer unreachable")

// Sender delivers rendered labels.
type Sender interface {
	Send(ctx context.Context, labels []string) error
}

// NewSender builds the sender for the configured method.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.Method {
	case MethodSerial:
		return NewSerialSender(cfg.Port, cfg.Baud), nil
	case MethodHTTP:
		return NewHTTPSender(cfg.URL), nil
	case MethodTCP:
		return NewTCPSender(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown print method %q", cfg.Method)
	}
}

type serialPort interface {
	io.WriteCloser
	Drain() error
}

// SerialSender writes labels to a serial port, 8N1.
type SerialSender struct {
	Port  string
	Baud  int
	Pause time.Duration

	open func(name string, mode *serial.Mode) (serialPort, error)
}

func NewSerialSender(port string, baud int) *SerialSender {
	return &SerialSender{
		Port:  port,
		Baud:  baud,
		Pause: 300 * time.Millisecond,
		open: func(name string, mode *serial.Mode) (serialPort, error) {
			p, err := serial.Open(name, mode)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

func (s *SerialSender) Send(ctx context.Context, labels []string) error {
	port, err := s.open(s.Port, &serial.Mode{
		BaudRate: s.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("%w: serial port %s: %v", ErrUnreachable, s.Port, err)
	}
	defer port.Close()

	for i, zpl := range labels {
		if _, err := port.Write([]byte(zpl)); err != nil {
			return fmt.Errorf("serial port %s: label %d: %w", s.Port, i+1, err)
		}
		if err := port.Drain(); err != nil {
			return fmt.Errorf("serial port %s: label %d: %w", s.Port, i+1, err)
		}
		if i < len(labels)-1 {
			if err := sleep(ctx, s.Pause); err != nil {
				return err
			}
		}
	}
	return nil
}

// HTTPSender posts each label to a print server.
type HTTPSender struct {
	URL    string
	Client *http.Client
}

func NewHTTPSender(url string) *HTTPSender {
	return &HTTPSender{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSender) Send(ctx context.Context, labels []string) error {
	for i, zpl := range labels {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewBufferString(zpl))
		if err != nil {
			return fmt.Errorf("invalid printer url %q: %w", s.URL, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.Client.Do(req)
		if err != nil {
			if i == 0 {
				return fmt.Errorf("%w: %v", ErrUnreachable, err)
			}
			return fmt.Errorf("label %d: %w", i+1, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("label %d: printer answered %s", i+1, resp.Status)
		}
	}
	return nil
}

// TCPSender streams labels to a raw printing port (9100).
type TCPSender struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPSender accepts "host:port" or a URL such as http://host:9100.
func NewTCPSender(addr string) *TCPSender {
	return &TCPSender{Addr: hostPort(addr), Timeout: 10 * time.Second}
}

func hostPort(addr string) string {
	if strings.Contains(addr, "://") {
		if u, err := url.Parse(addr); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return addr
}

func (s *TCPSender) Send(ctx context.Context, labels []string) error {
	d := net.Dialer{Timeout: s.Timeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(s.Timeout))
	for i, zpl := range labels {
		if _, err := io.WriteString(conn, zpl); err != nil {
			return fmt.Errorf("label %d: %w", i+1, err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
