package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/config/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print setting changes as the document is edited",
		Long: `Print setting changes as the document is edited.

The document is reloaded whenever it changes on disk and every setting whose
value changed is printed, together with fields that became shown or hidden.
Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			s.Subscribe(func(oldValue, newValue any, key string) {
				fmt.Fprintf(a.stdout, "%s %s -> %s\n", key,
					mutedStyle.Render(formatValue(oldValue)), valueStyle.Render(formatValue(newValue)))
			})
			s.OnVisibilityChange(func(f *schema.Field, visible bool) {
				state := "hidden"
				if visible {
					state = "shown"
				}
				fmt.Fprintf(a.stdout, "%s %s\n", f.Key, warningStyle.Render(state))
			})

			return a.watch(cmd.Context(), nil)
		},
	}
}

// watch reloads the session whenever the document changes, calling
// reloaded after each reload, until ctx is done or the process is
// interrupted.
func (a *app) watch(ctx context.Context, reloaded func()) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(a.document,
		watcher.WithDebounce(a.opts.WatchDebounce()),
		watcher.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("watch %s: %w", a.document, err)
	}
	defer w.Close()

	a.logger.Info("watching settings document", "path", w.Path())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Removed() {
				a.logger.Warn("settings document removed", "op", ev.Op)
				continue
			}
			if err := a.session.Reload(); err != nil {
				a.logger.Warn("reloaded with dropped values", "error", err)
			}
			if reloaded != nil {
				reloaded()
			}
		case err := <-w.Errors():
			a.logger.Warn("watch error", "error", err)
		}
	}
}
