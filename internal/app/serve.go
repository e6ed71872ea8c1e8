package app

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/dojo/internal/worker"
)

// ShutdownTimeout bounds graceful shutdown of the admin API.
const ShutdownTimeout = 30 * time.Second

// NewLogger configures the global zerolog logger for a console process and
// returns it. Unknown levels fall back to info.
func NewLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
	return log.Logger
}

// Serve runs the scheduler loops and the admin API until ctx is done.
func (a *App) Serve(ctx context.Context, version string, port int) error {
	svc := worker.NewService(version, worker.Deps{
		Health:   a.Store,
		Coverage: a.Analyzer,
		Taxonomy: a.TaxonomyAdmin,
		Jobs:     a.Scheduler,
		Feedback: a.Feedback,
		Videos:   a.Videos,
	}, a.log)
	if err := svc.Start(port); err != nil {
		return err
	}

	if a.Config.TaxonomyWatch && a.Config.TaxonomySeedPath != "" {
		go func() {
			if err := a.TaxonomyAdmin.Watch(ctx, a.Config.TaxonomySeedPath); err != nil {
				a.log.Error().Err(err).Msg("Taxonomy watcher stopped")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Scheduler.Start(ctx)
	}()

	<-ctx.Done()
	a.log.Info().Msg("Received shutdown signal")
	a.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := svc.Shutdown(shutdownCtx)
	<-done
	return err
}
