package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
)

func TestSSLRecord(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(SSLRecord(true)).Should(Equal("ssl=TRUE"))
	g.Expect(SSLRecord(false)).Should(Equal("ssl=FALSE"))
}

func TestServiceFromEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
		want  Service
		ok    bool
	}{
		{
			name: "ipv4 plain",
			entry: &zeroconf.ServiceEntry{
				Port:     1234,
				Text:     []string{"ssl=FALSE"},
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.5")},
			},
			want: Service{Name: "srv", Host: "192.168.1.5", Port: 1234},
			ok:   true,
		},
		{
			name: "tls lower case",
			entry: &zeroconf.ServiceEntry{
				Port:     8443,
				Text:     []string{"SSL=t"},
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			want: Service{Name: "srv", Host: "10.0.0.5", Port: 8443, UseTLS: true},
			ok:   true,
		},
		{
			name: "ipv6 fallback",
			entry: &zeroconf.ServiceEntry{
				Port:     1234,
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			want: Service{Name: "srv", Host: "fe80::2", Port: 1234},
			ok:   true,
		},
		{
			name:  "no address yet",
			entry: &zeroconf.ServiceEntry{Port: 1234},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			svc, ok := serviceFromEntry("srv", tt.entry)

			g.Expect(ok).Should(Equal(tt.ok))
			g.Expect(svc).Should(Equal(tt.want))
		})
	}
}
