//nolint:varnamelen // Test files use idiomatic short variable names (t, tt, etc.)
package config_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/alexflint/go-arg"
	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/internal/copyengine"
)

func TestConfigDescriptionAndVersion(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := config.Config{}

	g.Expect(cfg.Description()).ShouldNot(BeEmpty())
	g.Expect(cfg.Version()).Should(HavePrefix("lndp "))
}

func TestParseServe(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg, err := config.Parse([]string{
		"--settings", "/tmp/lndp-test.toml",
		"serve", "/srv/photos", "--name", "attic", "--writable", "-p", "8080",
	}, &bytes.Buffer{})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Serve).ShouldNot(BeNil())
	g.Expect(cfg.Serve.Folder).Should(Equal("/srv/photos"))
	g.Expect(cfg.Serve.Name).Should(Equal("attic"))
	g.Expect(cfg.Serve.Port).Should(Equal(8080))
	g.Expect(cfg.Serve.Writable).Should(BeTrue())
	g.Expect(cfg.LogLevel).Should(Equal("info"))
	g.Expect(cfg.SettingsPath).Should(Equal("/tmp/lndp-test.toml"))
}

func TestParseCopyDefaults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg, err := config.Parse([]string{"--settings", "s.toml", "copy", "lndp://attic/photos", "/backup"}, &bytes.Buffer{})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Copy.Mode).Should(Equal(copyengine.ModeFull))
	g.Expect(cfg.Copy.Select).Should(Equal(config.SelectAll))
	g.Expect(cfg.Copy.Timeout).Should(Equal(5 * time.Second))
	g.Expect(cfg.Copy.HTTPTimeout).Should(Equal(20 * time.Second))
	g.Expect(cfg.Serve).Should(BeNil())
}

func TestParseHTTPTimeoutIsSeparateFromResolveTimeout(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg, err := config.Parse([]string{"--settings", "s.toml", "ls", "--timeout", "2s", "--http-timeout", "90s",
		"lndp://attic/photos"}, &bytes.Buffer{})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.List.Timeout).Should(Equal(2 * time.Second))
	g.Expect(cfg.List.HTTPTimeout).Should(Equal(90 * time.Second))
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(Gomega, *config.Config)
	}{
		{
			name: "copy small with filters",
			args: []string{"copy", "a", "b", "--mode", "small", "--include", "*.jpg", "--exclude", "tmp/**"},
			check: func(g Gomega, cfg *config.Config) {
				g.Expect(cfg.Copy.Mode).Should(Equal(copyengine.ModeSmall))
				g.Expect(cfg.Copy.Include).Should(Equal([]string{"*.jpg"}))
				g.Expect(cfg.Copy.Exclude).Should(Equal([]string{"tmp/**"}))
			},
		},
		{
			name: "copy update alias",
			args: []string{"copy", "a", "b", "-m", "update-if-newer", "--select", "raw"},
			check: func(g Gomega, cfg *config.Config) {
				g.Expect(cfg.Copy.Mode).Should(Equal(copyengine.ModeUpdateIfNewer))
				g.Expect(cfg.Copy.Select).Should(Equal(config.SelectRaw))
			},
		},
		{
			name: "settings set",
			args: []string{"settings", "serverName", "attic"},
			check: func(g Gomega, cfg *config.Config) {
				g.Expect(cfg.Settings.Key).Should(Equal("serverName"))
				g.Expect(cfg.Settings.Value).Should(Equal("attic"))
			},
		},
		{
			name: "discover duration",
			args: []string{"discover", "-d", "10s"},
			check: func(g Gomega, cfg *config.Config) {
				g.Expect(cfg.Discover.Duration).Should(Equal(10 * time.Second))
			},
		},
		{name: "no command", args: []string{}, wantErr: true},
		{name: "unknown mode", args: []string{"copy", "a", "b", "--mode", "turbo"}, wantErr: true},
		{name: "unknown selection", args: []string{"copy", "a", "b", "--select", "videos"}, wantErr: true},
		{name: "bad glob", args: []string{"copy", "a", "b", "--include", "[a-"}, wantErr: true},
		{name: "missing destination", args: []string{"copy", "a"}, wantErr: true},
		{name: "port out of range", args: []string{"serve", "-p", "70000"}, wantErr: true},
		{name: "cert without key", args: []string{"serve", "--tls-cert", "c.pem"}, wantErr: true},
		{name: "bad log level", args: []string{"--log-level", "loud", "discover"}, wantErr: true},
		{name: "bad metrics address", args: []string{"serve", "--metrics-addr", "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			cfg, err := config.Parse(append([]string{"--settings", "s.toml"}, tt.args...), &bytes.Buffer{})

			if tt.wantErr {
				g.Expect(err).Should(HaveOccurred())
				return
			}

			g.Expect(err).ShouldNot(HaveOccurred())
			tt.check(g, cfg)
		})
	}
}

func TestParseHelp(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var out bytes.Buffer

	_, err := config.Parse([]string{"copy", "--help"}, &out)

	g.Expect(err).Should(MatchError(arg.ErrHelp))
	g.Expect(out.String()).Should(ContainSubstring("--mode"))
}
