package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/joe/lndp/internal/browser"
	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/pkg/filesystem"
)

// list prints the entries of a folder, or the details of a file.
func (a *App) list(ctx context.Context, cmd *config.ListCmd, store *config.Store) error {
	loc, err := a.open(ctx, cmd.Location, openOptions{
		timeout:     cmd.Timeout,
		httpTimeout: cmd.HTTPTimeout,
		insecure:    cmd.Insecure,
		token:       store.Settings().DeviceID,
	})
	if err != nil {
		return err
	}
	defer loc.close()

	if cmd.Summary {
		return a.printSummary(loc)
	}

	if !loc.folder.IsDirectory {
		a.printEntry(loc.folder)
		return nil
	}

	listCtx, cancel := context.WithCancel(ctx)
	docs := browser.New(loc.tree)

	listing, err := docs.Load(listCtx, loc.folder)

	// Thumbnails are not shown here.
	cancel()
	docs.Wait()

	if err != nil {
		return err //nolint:wrapcheck // Already names the folder
	}

	for _, entry := range listing.Entries {
		a.printEntry(entry)
	}

	return nil
}

func (a *App) printEntry(ref filesystem.DocumentRef) {
	name := ref.Name
	if ref.IsDirectory {
		name += "/"
	}

	a.printf("%-40s %s\n", name, browser.Details(ref))
}

func (a *App) printSummary(loc *opened) error {
	summarizer, ok := loc.tree.(filesystem.Summarizer)
	if !ok {
		return fmt.Errorf("cannot summarise %s: %w", loc.handle, filesystem.ErrUnsupported)
	}

	summary, err := summarizer.Summary()
	if err != nil {
		return err //nolint:wrapcheck // Already descriptive
	}

	a.printf("%s files, %s folders, %s\n",
		humanize.Comma(int64(summary.Files)),
		humanize.Comma(int64(summary.Dirs)),
		humanize.IBytes(uint64(max(summary.Bytes, 0))))

	return nil
}

// get downloads one remote document to a local file.
func (a *App) get(ctx context.Context, cmd *config.GetCmd, store *config.Store) error {
	loc, err := a.open(ctx, cmd.Location, openOptions{
		timeout:     cmd.Timeout,
		httpTimeout: cmd.HTTPTimeout,
		insecure:    cmd.Insecure,
		token:       store.Settings().DeviceID,
	})
	if err != nil {
		return err
	}
	defer loc.close()

	if loc.client == nil {
		return fmt.Errorf("cannot get %s: %w", cmd.Location, ErrNotRemote)
	}

	if loc.folder.IsDirectory {
		return fmt.Errorf("cannot get %s: is a folder: %w", cmd.Location, filesystem.ErrUnsupported)
	}

	output := cmd.Output
	if output == "" {
		output = filepath.Base(loc.folder.Name)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}

	report := rate.Sometimes{Interval: time.Second}
	total := loc.folder.Length

	n, err := loc.client.DownloadWhole(ctx, loc.folder, f, func(written int64) {
		report.Do(func() {
			_, _ = fmt.Fprintf(a.Stderr, "%s / %s\n",
				humanize.IBytes(uint64(written)), humanize.IBytes(uint64(max(total, 0))))
		})
	})

	closeErr := f.Close()

	if err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("failed to download %s: %w", cmd.Location, err)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to write %s: %w", output, closeErr)
	}

	_ = os.Chtimes(output, loc.folder.ModTime(), loc.folder.ModTime())

	a.printf("Saved %s (%s)\n", output, humanize.IBytes(uint64(n)))

	return nil
}
