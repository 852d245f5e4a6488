package discovery_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
	"go.uber.org/zap"

	"github.com/joe/lndp/internal/discovery"
)

func TestPrivateIPv4(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		addrs []net.Addr
		want  string
	}{
		{name: "none", addrs: nil, want: "<nil>"},
		{name: "public only", addrs: []net.Addr{ipNet("8.8.8.8")}, want: "<nil>"},
		{name: "ipv6 only", addrs: []net.Addr{ipNet("fd00::1")}, want: "<nil>"},
		{name: "home network", addrs: []net.Addr{ipNet("fe80::1"), ipNet("192.168.1.7")}, want: "192.168.1.7"},
		{name: "first private wins", addrs: []net.Addr{ipNet("10.0.0.3"), ipNet("172.16.0.9")}, want: "10.0.0.3"},
		{name: "non ipnet ignored", addrs: []net.Addr{&net.TCPAddr{IP: net.ParseIP("10.0.0.1")}}, want: "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(discovery.PrivateIPv4(tt.addrs).String()).Should(Equal(tt.want))
		})
	}
}

// addrSource returns whatever addresses were last set.
type addrSource struct {
	mu    sync.Mutex
	addrs []net.Addr
}

func (s *addrSource) set(addrs ...net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addrs = addrs
}

func (s *addrSource) get() ([]net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addrs, nil
}

func TestNetworkMonitorReportsChanges(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	source := &addrSource{}
	source.set(ipNet("192.168.1.7"))

	monitor := &discovery.NetworkMonitor{Interval: time.Millisecond, Addrs: source.get, Logger: zap.NewNop()}

	changes := make(chan discovery.Attachment, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		monitor.Run(ctx, func(a discovery.Attachment) { changes <- a })
	}()

	var attachment discovery.Attachment
	g.Eventually(changes).Should(Receive(&attachment))
	g.Expect(attachment.Connected).Should(BeTrue())
	g.Expect(attachment.IP.String()).Should(Equal("192.168.1.7"))

	source.set()
	g.Eventually(changes).Should(Receive(&attachment))
	g.Expect(attachment.Connected).Should(BeFalse())

	source.set(ipNet("10.1.1.1"))
	g.Eventually(changes).Should(Receive(&attachment))
	g.Expect(attachment.IP.String()).Should(Equal("10.1.1.1"))

	cancel()
	g.Eventually(done).Should(BeClosed())
	g.Expect(changes).Should(BeEmpty())
}

func ipNet(s string) *net.IPNet {
	ip := net.ParseIP(s)
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(24, 32)}
	}

	return &net.IPNet{IP: ip, Mask: net.CIDRMask(64, 128)}
}
