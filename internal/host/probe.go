package host

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Prober checks that a host answers on the network before its ARP entry is read.
type Prober interface {
	Probe(ctx context.Context, ip string) error
}

// ICMPProber pings targets using ICMP via pro-bing.
type ICMPProber struct {
	timeout time.Duration
	count   int
}

// NewICMPProber creates a new ICMP prober with the given timeout and ping count.
func NewICMPProber(timeout time.Duration, count int) *ICMPProber {
	return &ICMPProber{
		timeout: timeout,
		count:   count,
	}
}

// Probe pings the target and returns ErrUnreachable if no reply came back.
func (p *ICMPProber) Probe(ctx context.Context, ip string) error {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return fmt.Errorf("create pinger: %w", err)
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	// Run pinger in a goroutine for context cancellation.
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return fmt.Errorf("%w: ping %s: %v", ErrUnreachable, ip, runErr)
		}
		if pinger.Statistics().PacketsRecv == 0 {
			return fmt.Errorf("%w: ping %s: all packets lost", ErrUnreachable, ip)
		}
		return nil

	case <-ctx.Done():
		pinger.Stop()
		return fmt.Errorf("%w: ping %s: %v", ErrUnreachable, ip, ctx.Err())
	}
}
