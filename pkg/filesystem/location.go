package filesystem

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// DefaultPort is the port LNDP servers listen on unless configured otherwise.
const DefaultPort = 1234

const defaultSSHPort = 22

// TreeKind identifies how a TreeHandle is addressed.
type TreeKind int

// Tree kinds.
const (
	KindLocal TreeKind = iota
	KindSFTP
	KindService // lndp://<service>/<path>, resolved through discovery
	KindHTTP    // http[s]://host:port/<path>
)

// String returns the kind name.
func (k TreeKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindSFTP:
		return "sftp"
	case KindService:
		return "service"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// TreeHandle is a root reference from which DocumentRefs are resolved.
type TreeHandle struct {
	Kind TreeKind

	// LocalPath is the directory for KindLocal.
	LocalPath string

	// Remote addressing. Host and Port are filled in for KindSFTP and
	// KindHTTP, and for KindService once discovery resolves ServiceName.
	Host        string
	Port        int
	User        string
	ServiceName string
	UseTLS      bool

	// Path is the SFTP directory for KindSFTP, or the document path inside
	// the served tree for KindService and KindHTTP.
	Path string
}

// IsRemote reports whether the handle addresses an LNDP server.
func (h TreeHandle) IsRemote() bool {
	return h.Kind == KindService || h.Kind == KindHTTP
}

// Addr returns host:port.
func (h TreeHandle) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// BaseURL returns the scheme and authority of an LNDP server.
func (h TreeHandle) BaseURL() string {
	scheme := "http"
	if h.UseTLS {
		scheme = "https"
	}

	return scheme + "://" + h.Addr()
}

// String renders the handle back into location syntax.
func (h TreeHandle) String() string {
	switch h.Kind {
	case KindSFTP:
		return fmt.Sprintf("sftp://%s@%s/%s", h.User, h.Addr(), strings.TrimPrefix(h.Path, "."))
	case KindService:
		return "lndp://" + h.ServiceName + h.Path
	case KindHTTP:
		return h.BaseURL() + h.Path
	default:
		return h.LocalPath
	}
}

// ParseLocation parses a location string into a TreeHandle.
//
// Accepted forms:
//   - /local/path or relative/path
//   - sftp://user@host[:port]/path (relative to home; //path is absolute)
//   - lndp://<service name>/<path>
//   - http://host[:port]/<path> and https://host[:port]/<path>
func ParseLocation(location string) (TreeHandle, error) {
	switch {
	case strings.HasPrefix(location, "sftp://"):
		return parseSFTPURL(location)
	case strings.HasPrefix(location, "lndp://"):
		return parseServiceURL(location)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return parseHTTPURL(location)
	case location == "":
		return TreeHandle{}, fmt.Errorf("empty location: %w", ErrNotFound)
	default:
		return TreeHandle{Kind: KindLocal, LocalPath: location}, nil
	}
}

//nolint:cyclop // Validates scheme, user, host, port and path in turn
func parseSFTPURL(sftpURL string) (TreeHandle, error) {
	u, err := url.Parse(sftpURL) //nolint:varnamelen // u is idiomatic for URL
	if err != nil {
		return TreeHandle{}, fmt.Errorf("invalid SFTP URL: %w", err)
	}

	if u.User == nil || u.User.Username() == "" {
		return TreeHandle{}, fmt.Errorf("SFTP URL must include username (sftp://user@host/path)") //nolint:err113,perfsprint,lll // URL validation with format guidance
	}

	host := u.Hostname()
	if host == "" {
		return TreeHandle{}, fmt.Errorf("SFTP URL must include host") //nolint:err113,perfsprint // URL validation error
	}

	port, err := parsePort(u.Port(), defaultSSHPort)
	if err != nil {
		return TreeHandle{}, err
	}

	// sftp://user@host/path is relative to the home directory,
	// sftp://user@host//path is absolute.
	remotePath := u.Path

	switch {
	case remotePath == "" || remotePath == "/":
		remotePath = "."
	case strings.HasPrefix(remotePath, "//"):
		remotePath = remotePath[1:]
	default:
		remotePath = strings.TrimPrefix(remotePath, "/")
	}

	return TreeHandle{
		Kind: KindSFTP,
		Host: host,
		Port: port,
		User: u.User.Username(),
		Path: remotePath,
	}, nil
}

func parseServiceURL(serviceURL string) (TreeHandle, error) {
	rest := strings.TrimPrefix(serviceURL, "lndp://")

	name, docPath, _ := strings.Cut(rest, "/")
	if name == "" {
		return TreeHandle{}, fmt.Errorf("lndp URL must include a service name (lndp://name/path)") //nolint:err113,perfsprint,lll // URL validation with format guidance
	}

	unescaped, err := url.PathUnescape(name)
	if err != nil {
		return TreeHandle{}, fmt.Errorf("invalid service name %q: %w", name, err)
	}

	return TreeHandle{
		Kind:        KindService,
		ServiceName: unescaped,
		Path:        path.Clean("/" + docPath),
	}, nil
}

func parseHTTPURL(httpURL string) (TreeHandle, error) {
	u, err := url.Parse(httpURL) //nolint:varnamelen // u is idiomatic for URL
	if err != nil {
		return TreeHandle{}, fmt.Errorf("invalid URL: %w", err)
	}

	if u.Hostname() == "" {
		return TreeHandle{}, fmt.Errorf("URL must include host") //nolint:err113,perfsprint // URL validation error
	}

	port, err := parsePort(u.Port(), DefaultPort)
	if err != nil {
		return TreeHandle{}, err
	}

	return TreeHandle{
		Kind:   KindHTTP,
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https",
		Path:   path.Clean("/" + u.Path),
	}, nil
}

func parsePort(portStr string, fallback int) (int, error) {
	if portStr == "" {
		return fallback, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %w", err)
	}

	return port, nil
}
