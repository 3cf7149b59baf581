// Package sync reconciles the card table with the decks found in each source.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/barprep/internal/domain"
	"github.com/conorfennell/barprep/internal/fingerprint"
	"github.com/conorfennell/barprep/internal/gitsource"
	"github.com/conorfennell/barprep/internal/parser"
	"github.com/conorfennell/barprep/internal/storage"
)

// Store is the subset of storage used by sync.
type Store interface {
	InsertSource(ctx context.Context, path, sourceType string) (int64, error)
	FindSourceByPath(ctx context.Context, path string) (*storage.Source, error)
	DeleteSource(ctx context.Context, sourceID int64) error
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
	FindCardByHash(ctx context.Context, hash string) (*domain.Card, error)
	InsertCard(ctx context.Context, card domain.Card, sourceID int64) error
	LinkCard(ctx context.Context, hash string, sourceID int64) error
	UpdateCardSubject(ctx context.Context, hash, subject string) error
	GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error)
	UnlinkCard(ctx context.Context, hash string, sourceID int64) (bool, error)
}

// Fetcher brings a git source up to date on disk.
type Fetcher interface {
	Sync(ctx context.Context, url, localPath string) error
}

// Syncer walks sources and reconciles their decks into the store.
type Syncer struct {
	Store    Store
	Git      Fetcher
	ReposDir string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Report summarises one sync run.
type Report struct {
	Sources int
	Parsed  int
	Added   int
	Updated int
	Removed int
	Errors  []error
}

// AddSource registers a local directory or git URL as a deck source.
func AddSource(ctx context.Context, store Store, path string) (int64, error) {
	sourceType := storage.SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = storage.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve source path %s: %w", path, err)
		}
		path = abs
	}
	return store.InsertSource(ctx, path, sourceType)
}

// RemoveSource unregisters a source and deletes its cards and their review
// state. Review history is kept.
func RemoveSource(ctx context.Context, store Store, path string) error {
	if !gitsource.IsGitURL(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve source path %s: %w", path, err)
		}
		path = abs
	}
	src, err := store.FindSourceByPath(ctx, path)
	if err != nil {
		return err
	}
	return store.DeleteSource(ctx, src.ID)
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// RunSync iterates over all sources and reconciles them. Errors within a
// single source are collected in the report; only failing to list the
// sources aborts the run.
func (s *Syncer) RunSync(ctx context.Context) (Report, error) {
	log := s.logger()
	log.Info("starting sync for all sources")

	sources, err := s.Store.GetAllSources(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get sources: %w", err)
	}

	var report Report
	if len(sources) == 0 {
		log.Info("no sources configured; add one with `barprep add-source <path/or/url.git>`")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		report.Sources++

		dir := source.Path
		if source.Type == storage.SourceGit {
			localRepoPath, err := gitsource.LocalPath(s.ReposDir, source.Path)
			if err != nil {
				report.Errors = append(report.Errors, err)
				log.Error("error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := s.Git.Sync(ctx, source.Path, localRepoPath); err != nil {
				report.Errors = append(report.Errors, err)
				log.Error("error syncing git repo", "url", source.Path, "error", err)
				continue
			}
			dir = localRepoPath
		}

		s.reconcile(ctx, source.ID, dir, &report)
	}

	log.Info("sync complete",
		"sources", report.Sources,
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed,
		"errors", len(report.Errors),
	)
	return report, nil
}

// reconcile inserts cards found under dir, links existing ones to the
// source and refreshes their subject, then unlinks cards the source no
// longer contains. A card is deleted only once no source holds it.
func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string, report *Report) {
	log := s.logger()
	found := make(map[string]bool)
	var errs []error

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, card := range fingerprint.Stamp(cards) {
			report.Parsed++
			if found[card.Hash] {
				continue
			}
			found[card.Hash] = true

			existing, findErr := s.Store.FindCardByHash(ctx, card.Hash)
			switch {
			case errors.Is(findErr, storage.ErrNotFound):
				log.Debug("new card found, inserting", "hash", card.Hash, "subject", card.Subject)
				if err := s.Store.InsertCard(ctx, card, sourceID); err != nil {
					errs = append(errs, fmt.Errorf("db insert for %s: %w", card.Hash, err))
					continue
				}
				report.Added++
			case findErr != nil:
				errs = append(errs, fmt.Errorf("db check for %s: %w", card.Hash, findErr))
			default:
				if err := s.Store.LinkCard(ctx, card.Hash, sourceID); err != nil {
					errs = append(errs, fmt.Errorf("db link for %s: %w", card.Hash, err))
					continue
				}
				if existing.Subject != card.Subject {
					if err := s.Store.UpdateCardSubject(ctx, card.Hash, card.Subject); err != nil {
						errs = append(errs, fmt.Errorf("db update for %s: %w", card.Hash, err))
						continue
					}
					report.Updated++
				}
			}
		}
		return nil
	})
	report.Errors = append(report.Errors, errs...)

	if walkErr != nil {
		report.Errors = append(report.Errors, walkErr)
		log.Error("error walking directory", "path", dir, "error", walkErr)
		return
	}

	dbCards, err := s.Store.GetCardsBySourceID(ctx, sourceID)
	if err != nil {
		report.Errors = append(report.Errors, err)
		log.Error("error getting cards for source", "source_id", sourceID, "error", err)
		return
	}

	for _, dbCard := range dbCards {
		if found[dbCard.Hash] {
			continue
		}
		deleted, err := s.Store.UnlinkCard(ctx, dbCard.Hash, sourceID)
		if err != nil {
			report.Errors = append(report.Errors, err)
			log.Warn("failed to remove orphaned card", "hash", dbCard.Hash, "error", err)
			continue
		}
		if !deleted {
			log.Debug("card left source but is still held by another", "hash", dbCard.Hash, "source_id", sourceID)
			continue
		}
		log.Debug("orphaned card deleted", "hash", dbCard.Hash)
		report.Removed++
	}

	if err := s.Store.UpdateSourceLastScanned(ctx, sourceID, s.now()); err != nil {
		report.Errors = append(report.Errors, err)
		log.Warn("failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	log.Info("reconciliation complete", "path", dir, "cards", len(found), "errors", len(errs))
}
