package discovery

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// PollInterval is how often the NetworkMonitor checks the interfaces.
const PollInterval = 5 * time.Second

// Attachment is the host's local-network attachment.
type Attachment struct {
	Connected bool
	// IP is the private IPv4 address the host is reachable at.
	IP net.IP
}

// Equal reports whether both attachments have the same state and address.
func (a Attachment) Equal(other Attachment) bool {
	return a.Connected == other.Connected && a.IP.Equal(other.IP)
}

// InterfaceAddrs lists the addresses of the up, non-loopback interfaces.
type InterfaceAddrs func() ([]net.Addr, error)

// NetworkMonitor polls the host's interfaces and reports when the local
// network attachment changes.
type NetworkMonitor struct {
	Interval time.Duration
	Addrs    InterfaceAddrs
	Logger   *zap.Logger
}

// NewNetworkMonitor creates a monitor over the real interfaces.
func NewNetworkMonitor(logger *zap.Logger) *NetworkMonitor {
	return &NetworkMonitor{Interval: PollInterval, Addrs: SystemAddrs, Logger: logger}
}

// Current returns the attachment right now.
func (m *NetworkMonitor) Current() Attachment {
	addrs, err := m.Addrs()
	if err != nil {
		m.Logger.Warn("failed to list interface addresses", zap.Error(err))
		return Attachment{}
	}

	if ip := PrivateIPv4(addrs); ip != nil {
		return Attachment{Connected: true, IP: ip}
	}

	return Attachment{}
}

// Run reports the initial attachment and then every change until ctx is done.
func (m *NetworkMonitor) Run(ctx context.Context, onChange func(Attachment)) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	last := m.Current()
	onChange(last)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current := m.Current()
		if current.Equal(last) {
			continue
		}

		m.Logger.Info("network attachment changed",
			zap.Bool("connected", current.Connected),
			zap.Stringer("ip", current.IP))

		last = current
		onChange(current)
	}
}

// SystemAddrs returns the addresses of every up, non-loopback interface.
func SystemAddrs() ([]net.Addr, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err //nolint:wrapcheck // Logged by the caller
	}

	var addrs []net.Addr

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		addrs = append(addrs, ifaceAddrs...)
	}

	return addrs, nil
}

// PrivateIPv4 returns the first private IPv4 address in addrs, or nil.
func PrivateIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}

		if ip := ipnet.IP.To4(); ip != nil && ip.IsPrivate() {
			return ip
		}
	}

	return nil
}
