// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"visualizer/internal/log"
	"visualizer/internal/metrics"
)

// DefaultInterval is used when a publisher is created with a non-positive
// interval (~30Hz).
const DefaultInterval = 33 * time.Millisecond

// Publisher periodically fetches the latest spectrum from a SnapshotProvider
// and hands it to a Transport. A snapshot is sent at most once: ticks that
// find the same sequence number as the last send are skipped, so a publisher
// faster than the pipeline never repeats data.
// It runs in a separate goroutine managed by Start and Stop methods.
type Publisher struct {
	provider  SnapshotProvider  // Source of published spectra.
	transport Transport         // Destination.
	interval  time.Duration     // The interval at which snapshots are checked.
	metrics   *metrics.Metrics  // Optional.
	log       log.Logger

	ticker   *time.Ticker   // Ticker that triggers publishing.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	lastSeq uint64 // Sequence number of the last snapshot sent; owned by the goroutine.
}

// NewPublisher creates a Publisher. If the provided interval is invalid
// (<= 0), it defaults to DefaultInterval.
func NewPublisher(interval time.Duration, provider SnapshotProvider, t Transport, m *metrics.Metrics) (*Publisher, error) {
	if provider == nil {
		return nil, fmt.Errorf("publisher: snapshot provider cannot be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("publisher: transport cannot be nil")
	}

	l := log.Named("publisher/" + t.Name())
	if interval <= 0 {
		interval = DefaultInterval
		l.Warnf("invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		provider:  provider,
		transport: t,
		interval:  interval,
		metrics:   m,
		log:       l,
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *Publisher) Start() {
	p.mu.Lock()
	// Prevent starting if already running
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("Start called but already running")
		return
	}

	// Initialize resources for this run
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{} // Reset stopOnce for this run

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Infof("started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	// Check if already stopped or never started
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan) // Signal the goroutine to exit
		p.ticker.Stop()
		p.ticker = nil // Mark as stopped
	})

	p.mu.Unlock() // Unlock before waiting

	p.wg.Wait()
	p.log.Debugf("stopped")
	return nil
}

// Run starts the publisher and stops it when ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	return p.Stop()
}

// publish sends the latest snapshot if it is newer than the last one sent.
func (p *Publisher) publish() {
	snap := p.provider.Snapshot()
	if snap == nil || snap.Seq == p.lastSeq {
		return
	}
	p.lastSeq = snap.Seq

	err := p.transport.Send(snap)
	if errors.Is(err, ErrSkipped) {
		return
	}
	p.metrics.RecordSend(p.transport.Name(), err)
	if err != nil {
		// Per-packet errors are frequent while a receiver is down; keep them at debug.
		p.log.Debugf("send seq %d: %v", snap.Seq, err)
	}
}

// Close stops the publisher and closes its transport.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.transport.Close()
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
