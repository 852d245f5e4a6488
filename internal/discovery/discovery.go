package discovery

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Discovery ties the monitor, browser and registry together: browsing runs
// while the host is attached to a local network and the registry is cleared
// whenever it is not.
type Discovery struct {
	Registry *Registry
	Browser  Browser
	Monitor  *NetworkMonitor
	Logger   *zap.Logger
}

// New creates a Discovery over mDNS and the real interfaces.
func New(logger *zap.Logger) *Discovery {
	registry := NewRegistry(ZeroconfResolver{})
	registry.SetLogger(logger)

	return &Discovery{
		Registry: registry,
		Browser:  ZeroconfBrowser{},
		Monitor:  NewNetworkMonitor(logger),
		Logger:   logger,
	}
}

// Run blocks until ctx is done.
func (d *Discovery) Run(ctx context.Context) {
	var (
		mu          sync.Mutex
		stopBrowse  context.CancelFunc
		browserDone sync.WaitGroup
	)

	stop := func() {
		if stopBrowse != nil {
			stopBrowse()
			stopBrowse = nil
		}
	}

	d.Monitor.Run(ctx, func(attachment Attachment) {
		mu.Lock()
		defer mu.Unlock()

		if !attachment.Connected {
			stop()
			d.Registry.SetConnected(false)

			return
		}

		d.Registry.SetConnected(true)

		// Restart browsing so services on the new network are found.
		stop()

		browseCtx, cancel := context.WithCancel(ctx)
		stopBrowse = cancel

		browserDone.Add(1)

		go func() {
			defer browserDone.Done()
			d.browse(browseCtx)
		}()
	})

	mu.Lock()
	stop()
	mu.Unlock()

	browserDone.Wait()
	d.Registry.Wait()
}

// browse runs the browser, logging failures and panics from it.
func (d *Discovery) browse(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			d.Logger.Error("service browser panicked", zap.Any("panic", rec))
		}
	}()

	err := d.Browser.Browse(ctx,
		func(name string) { d.safely("found", name, d.Registry.ServiceFound) },
		func(name string) { d.safely("lost", name, d.Registry.ServiceLost) })
	if err != nil {
		d.Logger.Warn("service browsing failed", zap.Error(err))
	}
}

// safely runs a browse callback so that a failure in it never stops browsing.
func (d *Discovery) safely(event, name string, fn func(string)) {
	defer func() {
		if rec := recover(); rec != nil {
			d.Logger.Error("discovery callback failed",
				zap.String("event", event),
				zap.String("service", name),
				zap.Error(fmt.Errorf("%v", rec))) //nolint:err113 // Recovered panic value
		}
	}()

	fn(name)
}
