package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/joe/lndp/pkg/protocol"
)

// Browser reports services of the LNDP type appearing and disappearing until
// ctx is done.
type Browser interface {
	Browse(ctx context.Context, found, lost func(name string)) error
}

// ZeroconfBrowser browses over mDNS.
type ZeroconfBrowser struct {
	Interfaces []net.Interface
}

// Browse blocks until ctx is done. Entries announced with a zero TTL are
// goodbye packets and reported as lost.
func (b ZeroconfBrowser) Browse(ctx context.Context, found, lost func(name string)) error {
	resolver, err := zeroconf.NewResolver(b.options()...)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		for entry := range entries {
			if entry.TTL == 0 {
				lost(entry.Instance)
				continue
			}

			found(entry.Instance)
		}
	}()

	if err := resolver.Browse(ctx, protocol.ServiceType, protocol.ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse %s: %w", protocol.ServiceType, err)
	}

	<-ctx.Done()

	return nil
}

func (b ZeroconfBrowser) options() []zeroconf.ClientOption {
	if len(b.Interfaces) == 0 {
		return nil
	}

	return []zeroconf.ClientOption{zeroconf.SelectIfaces(b.Interfaces)}
}

// ZeroconfResolver looks a single service instance up over mDNS.
type ZeroconfResolver struct {
	Interfaces []net.Interface
}

// Resolve returns the first answer carrying an address. The ssl TXT
// attribute selects HTTPS.
func (z ZeroconfResolver) Resolve(ctx context.Context, name string) (Service, error) {
	resolver, err := zeroconf.NewResolver(ZeroconfBrowser(z).options()...)
	if err != nil {
		return Service{}, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	if err := resolver.Lookup(ctx, name, protocol.ServiceType, protocol.ServiceDomain, entries); err != nil {
		return Service{}, fmt.Errorf("failed to look up %q: %w", name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return Service{}, fmt.Errorf("failed to resolve %q: %w", name, ctx.Err())
		case entry, ok := <-entries:
			if !ok {
				return Service{}, fmt.Errorf("failed to resolve %q: %w", name, ErrNotResolved)
			}

			if svc, ok := serviceFromEntry(name, entry); ok {
				return svc, nil
			}
		}
	}
}

func serviceFromEntry(name string, entry *zeroconf.ServiceEntry) (Service, bool) {
	var host net.IP

	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0]
	default:
		return Service{}, false
	}

	attrs := protocol.ParseTXT(entry.Text)

	return Service{
		Name:   name,
		Host:   host.String(),
		Port:   entry.Port,
		UseTLS: protocol.ParseSSL(attrs[protocol.SSLAttribute]),
	}, true
}

// ZeroconfAdvertiser registers the server over mDNS.
type ZeroconfAdvertiser struct {
	Interfaces []net.Interface
}

// Advertise registers name on port with the ssl TXT attribute. The returned
// function unregisters it.
func (a ZeroconfAdvertiser) Advertise(_ context.Context, name string, port int, useTLS bool) (func(), error) {
	server, err := zeroconf.Register(name, protocol.ServiceType, protocol.ServiceDomain, port,
		[]string{SSLRecord(useTLS)}, a.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("failed to register %q: %w", name, err)
	}

	return server.Shutdown, nil
}

// SSLRecord returns the TXT record announcing whether the server speaks HTTPS.
func SSLRecord(useTLS bool) string {
	return protocol.SSLAttribute + "=" + strings.ToUpper(strconv.FormatBool(useTLS))
}
