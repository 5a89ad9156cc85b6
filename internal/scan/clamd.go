// Package scan checks uploaded files for malware with clamd.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected is returned when clamd reports a signature match.
var ErrInfected = errors.New("malicious file detected")

// Scanner inspects a file's content.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// Disabled accepts every file. It is used when no clamd address is configured.
type Disabled struct{}

func (Disabled) Scan(context.Context, io.Reader) error { return nil }

// Clamd streams files to a clamd daemon.
type Clamd struct {
	client  *clamd.Clamd
	timeout time.Duration
}

// New returns a scanner for addr (for example "tcp://clamav:3310"). An empty
// address yields Disabled.
func New(addr string, timeout time.Duration) Scanner {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Disabled{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Clamd{client: clamd.NewClamd(addr), timeout: timeout}
}

// Ping checks that the daemon answers.
func (s *Clamd) Ping() error {
	if err := s.client.Ping(); err != nil {
		return fmt.Errorf("ping clamd: %w", err)
	}
	return nil
}

// Scan sends r to clamd with INSTREAM and fails with ErrInfected on a match.
func (s *Clamd) Scan(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	abort := make(chan bool, 1)
	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			abort <- true
			return fmt.Errorf("scan stream: %w", ctx.Err())
		case result, ok := <-results:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrInfected, result.Description)
			default:
				return fmt.Errorf("scan stream: clamd returned %s: %s", result.Status, result.Description)
			}
		}
	}
}
