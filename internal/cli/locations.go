package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/pkg/filesystem"
	"github.com/joe/lndp/pkg/protocol"
	"github.com/joe/lndp/pkg/remote"
)

// opened is a location ready for use.
type opened struct {
	handle filesystem.TreeHandle
	tree   filesystem.TreeProvider
	folder filesystem.DocumentRef
	client *remote.Client // set for LNDP locations
	close  func()
}

// openOptions configures how remote locations are reached.
type openOptions struct {
	timeout     time.Duration // service resolution
	httpTimeout time.Duration // each remote request
	insecure    bool
	token       string
}

// open parses location, resolves service names and returns the tree and the
// document the location points at.
func (a *App) open(ctx context.Context, location string, opts openOptions) (*opened, error) {
	handle, err := filesystem.ParseLocation(location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", location, err)
	}

	if handle.Kind == filesystem.KindService {
		handle, err = a.resolve(ctx, handle, opts.timeout)
		if err != nil {
			return nil, err
		}
	}

	if handle.IsRemote() {
		return a.openRemote(ctx, handle, opts)
	}

	tree, closer, err := filesystem.OpenTree(handle)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already names the location
	}

	root, err := tree.Root(ctx)
	if err != nil {
		closer()
		return nil, err //nolint:wrapcheck // Already names the location
	}

	return &opened{handle: handle, tree: tree, folder: root, close: closer}, nil
}

func (a *App) openRemote(ctx context.Context, handle filesystem.TreeHandle, opts openOptions) (*opened, error) {
	client, err := remote.New(remote.Config{
		BaseURL:     handle.BaseURL(),
		Token:       opts.token,
		Timeout:     opts.httpTimeout,
		InsecureTLS: opts.insecure,
		Logger:      logging.Named("remote"),
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive
	}

	doc, err := client.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", handle, err)
	}

	if handle.Path != filesystem.RootID {
		doc, err = client.Stat(ctx, protocol.JoinID(client.ServerName(), handle.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", handle, err)
		}
	}

	return &opened{handle: handle, tree: client, folder: doc, client: client, close: func() {}}, nil
}

// resolve browses the network until the service of handle is resolved.
func (a *App) resolve(ctx context.Context, handle filesystem.TreeHandle, timeout time.Duration) (filesystem.TreeHandle, error) {
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	disc := a.NewDiscovery(logging.Named("discovery"))

	go func() {
		defer close(done)
		disc.Run(runCtx)
	}()

	defer func() {
		stop()
		<-done
	}()

	awaitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	svc, err := disc.Registry.Await(awaitCtx, handle.ServiceName)
	if err != nil {
		return filesystem.TreeHandle{}, err //nolint:wrapcheck // Already names the service
	}

	a.logger.Debug("service resolved",
		zap.String("service", svc.Name),
		zap.String("addr", svc.Addr()),
		zap.Bool("tls", svc.UseTLS))

	return svc.Handle(handle.Path), nil
}
