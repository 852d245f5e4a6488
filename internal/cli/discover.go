package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/internal/discovery"
	"github.com/joe/lndp/internal/logging"
)

// discover browses for duration and prints every service resolved.
func (a *App) discover(ctx context.Context, cmd *config.DiscoverCmd) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration)
	defer cancel()

	disc := a.NewDiscovery(logging.Named("discovery"))
	changes := disc.Registry.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		disc.Run(ctx)
	}()

	printed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			<-done
			disc.Registry.Unsubscribe(changes)

			if len(printed) == 0 {
				a.printf("No servers found in %s\n", cmd.Duration.Round(time.Millisecond))
			}

			return nil
		case change, ok := <-changes:
			if !ok {
				continue
			}

			for _, svc := range change.Services {
				if !printed[svc.Name] {
					printed[svc.Name] = true
					a.printService(svc)
				}
			}
		}
	}
}

func (a *App) printService(svc discovery.Service) {
	a.printf("%-24s %-22s tls=%s  lndp://%s/\n", svc.Name, svc.Addr(), strconv.FormatBool(svc.UseTLS), svc.Name)
}
