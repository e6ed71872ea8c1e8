package taxonomy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/thebtf/dojo/pkg/models"
)

// Writer replaces the stored taxonomy in one transaction.
type Writer interface {
	ReplaceTaxonomy(ctx context.Context, specs []models.TaxonomyNodeSpec) error
}

// Invalidator drops cached taxonomy state.
type Invalidator interface {
	Invalidate()
}

// Admin is the administrative write path for the taxonomy.
// Every write is followed by a cache invalidation.
type Admin struct {
	writer Writer
	cache  Invalidator
	log    zerolog.Logger
}

// NewAdmin creates the taxonomy admin.
func NewAdmin(writer Writer, cache Invalidator, log zerolog.Logger) *Admin {
	return &Admin{
		writer: writer,
		cache:  cache,
		log:    log.With().Str("component", "taxonomy-admin").Logger(),
	}
}

// Replace validates and writes specs, then invalidates the cache.
func (a *Admin) Replace(ctx context.Context, specs []models.TaxonomyNodeSpec) error {
	if err := ValidateSpecs(specs); err != nil {
		return err
	}

	err := a.writer.ReplaceTaxonomy(ctx, specs)
	// Invalidate even on failure: the store may have been touched before the error surfaced.
	a.cache.Invalidate()
	if err != nil {
		return fmt.Errorf("replace taxonomy: %w", err)
	}

	a.log.Info().Int("nodes", len(specs)).Msg("Taxonomy replaced")
	return nil
}

// LoadSeed writes a parsed seed document.
func (a *Admin) LoadSeed(ctx context.Context, seed *Seed) error {
	return a.Replace(ctx, seed.Specs())
}

// LoadFile reads and writes the YAML document at path.
func (a *Admin) LoadFile(ctx context.Context, path string) error {
	seed, err := ReadSeedFile(path)
	if err != nil {
		return err
	}
	return a.LoadSeed(ctx, seed)
}

// Watch reapplies the seed file whenever it changes until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (a *Admin) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create taxonomy watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch taxonomy dir: %w", err)
	}

	a.log.Info().Str("path", path).Msg("Watching taxonomy seed file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := a.LoadFile(ctx, path); err != nil {
				a.log.Error().Err(err).Str("path", path).Msg("Failed to reload taxonomy seed")
				continue
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn().Err(err).Msg("Taxonomy watcher error")
		}
	}
}
