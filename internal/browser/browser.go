// Package browser keeps the listing of the folder currently shown for a
// tree, with thumbnails loaded in the background. Every Load bumps a
// generation counter; work started for an older generation keeps running but
// its results are dropped.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/pkg/filesystem"
)

// ErrStale is returned by Load when a newer Load started before the listing
// arrived.
var ErrStale = errors.New("listing superseded by a newer load")

// Listing is a snapshot of one folder.
type Listing struct {
	Generation uint64
	Folder     filesystem.DocumentRef
	Entries    []filesystem.DocumentRef
}

// ThumbnailLoaded reports one thumbnail of the current listing.
type ThumbnailLoaded struct {
	Generation uint64
	Index      int
	ID         string
	Data       []byte
}

// LoadFinished reports that the thumbnail loop of a generation is done.
type LoadFinished struct {
	Generation uint64
}

// Browser lists folders of one tree.
type Browser struct {
	tree   filesystem.TreeProvider
	logger *zap.Logger

	// OnThumbnail and OnFinished are called from the prefetch goroutine for
	// the current generation only.
	OnThumbnail func(ThumbnailLoaded)
	OnFinished  func(LoadFinished)

	generation atomic.Uint64

	mu         sync.Mutex
	current    Listing
	thumbnails map[string][]byte
	wg         sync.WaitGroup
}

// New creates a browser over tree.
func New(tree filesystem.TreeProvider) *Browser {
	return &Browser{
		tree:       tree,
		logger:     logging.Named("browser"),
		thumbnails: make(map[string][]byte),
	}
}

// Tree returns the tree being browsed.
func (b *Browser) Tree() filesystem.TreeProvider {
	return b.tree
}

// Generation returns the generation of the most recent Load.
func (b *Browser) Generation() uint64 {
	return b.generation.Load()
}

// Load lists folder, sorts it for display, makes it current and starts
// loading thumbnails in the background.
func (b *Browser) Load(ctx context.Context, folder filesystem.DocumentRef) (Listing, error) {
	generation := b.generation.Add(1)

	entries, err := b.tree.ListChildren(ctx, folder)
	if err != nil {
		return Listing{}, fmt.Errorf("failed to load %s: %w", folder.ID, err)
	}

	SortForDisplay(entries)

	listing := Listing{Generation: generation, Folder: folder, Entries: entries}

	b.mu.Lock()
	if b.generation.Load() != generation {
		b.mu.Unlock()
		return Listing{}, ErrStale
	}

	b.current = listing
	clear(b.thumbnails)
	b.mu.Unlock()

	b.logger.Debug("folder loaded",
		zap.String("folder", folder.ID),
		zap.Int("entries", len(entries)),
		zap.Uint64("generation", generation))

	b.wg.Add(1)

	go b.prefetch(ctx, listing)

	return listing, nil
}

// Current returns the current listing.
func (b *Browser) Current() Listing {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.current
}

// Thumbnail returns a loaded thumbnail of the current listing.
func (b *Browser) Thumbnail(id string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.thumbnails[id]

	return data, ok
}

// Wait blocks until every prefetch loop has returned.
func (b *Browser) Wait() {
	b.wg.Wait()
}

// prefetch loads the thumbnails of listing in order. It stops early once the
// listing is superseded and never touches shared state for an old generation.
func (b *Browser) prefetch(ctx context.Context, listing Listing) {
	defer b.wg.Done()

	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("thumbnail loading panicked", zap.Any("panic", rec))
		}

		if b.generation.Load() == listing.Generation && b.OnFinished != nil {
			b.OnFinished(LoadFinished{Generation: listing.Generation})
		}
	}()

	for index, ref := range listing.Entries {
		if b.generation.Load() != listing.Generation || ctx.Err() != nil {
			return
		}

		if !ref.SupportsThumbnail {
			continue
		}

		data := b.tree.Thumbnail(ctx, ref)
		if data == nil {
			continue
		}

		b.mu.Lock()
		if b.generation.Load() != listing.Generation {
			b.mu.Unlock()
			return
		}

		b.thumbnails[ref.ID] = data
		b.mu.Unlock()

		if b.OnThumbnail != nil {
			b.OnThumbnail(ThumbnailLoaded{Generation: listing.Generation, Index: index, ID: ref.ID, Data: data})
		}
	}
}
