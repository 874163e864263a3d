package store

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// mirrorConcurrency bounds parallel fetches during Mirror.
const mirrorConcurrency = 4

// Mirror copies every stack's history from src into dst. All stacks are
// fetched before anything is written; if any fetch fails, the existing files
// in dst are left untouched and the first error is returned.
func Mirror(ctx context.Context, src Source, dst *FileStore, stacks []string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	for _, stack := range stacks {
		if err := ValidateStack(stack); err != nil {
			return err
		}
	}

	fetched := make([]history.History, len(stacks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mirrorConcurrency)
	for i, stack := range stacks {
		g.Go(func() error {
			h, err := src.LoadHistory(gctx, stack)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", stack, err)
			}
			fetched[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Printf("mirror: %v; keeping existing history files", err)
		return err
	}

	for i, stack := range stacks {
		if err := dst.SaveHistory(ctx, stack, fetched[i]); err != nil {
			return err
		}
		logger.Printf("mirror: %s: %d records -> %s", stack, len(fetched[i]), dst.Path(stack))
	}
	return nil
}
