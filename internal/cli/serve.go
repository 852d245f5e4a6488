package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/internal/discovery"
	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/internal/server"
	"github.com/joe/lndp/pkg/filesystem"
)

// shutdownTimeout bounds the metrics listener shutdown.
const shutdownTimeout = 5 * time.Second

var errNoFolder = errors.New("no folder to serve (pass one or set " + config.KeyPublicFolderRootURI + ")")

// serve shares a folder until ctx is cancelled.
func (a *App) serve(ctx context.Context, cmd *config.ServeCmd, store *config.Store) error {
	settings := store.Settings()

	folder := cmd.Folder
	if folder == "" {
		folder = settings.PublicFolderRootURI
	}

	if folder == "" {
		return errNoFolder
	}

	handle, err := filesystem.ParseLocation(folder)
	if err != nil {
		return fmt.Errorf("invalid folder %q: %w", folder, err)
	}

	tree, closer, err := filesystem.OpenTree(handle)
	if err != nil {
		return err //nolint:wrapcheck // Already names the folder
	}
	defer closer()

	name := cmd.Name
	if name == "" {
		name = settings.ServerName
	}

	host := cmd.Host
	if host == "" {
		// Serve on the private network address when attached to one.
		if attachment := discovery.NewNetworkMonitor(a.logger).Current(); attachment.Connected {
			host = attachment.IP.String()
		}
	}

	opts := []server.Option{server.WithLogger(logging.Named("server"))}
	if a.Advertiser != nil && !cmd.NoAdvertise {
		opts = append(opts, server.WithAdvertiser(a.Advertiser))
	}

	srv := server.New(tree, server.Config{
		ServerName:     name,
		Host:           host,
		Port:           cmd.Port,
		Writable:       cmd.Writable,
		TLSCert:        cmd.TLSCert,
		TLSKey:         cmd.TLSKey,
		AllowAnonymous: cmd.NoAuth,
	}, opts...)

	if err := srv.Start(ctx); err != nil {
		return err //nolint:wrapcheck // Already descriptive
	}

	a.printf("Serving %s as %q on %s\n", handle, name, srv.Addr())

	var metricsServer *http.Server
	if cmd.MetricsAddr != "" {
		metricsServer = a.serveMetrics(cmd.MetricsAddr, srv.Metrics().Handler())
	}

	if a.Ready != nil {
		a.Ready(srv)
	}

	<-ctx.Done()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return srv.Stop() //nolint:wrapcheck // Already descriptive
}

func (a *App) serveMetrics(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)

	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Same as the document server
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics listener failed", zap.String("addr", addr), zap.Error(err))
		}
	}()

	a.printf("Metrics on http://%s/metrics\n", addr)

	return metricsServer
}
