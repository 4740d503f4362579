package cli

import (
	"context"
	"fmt"

	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/embedding"
	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/index"
	"github.com/roach88/chronicle/internal/syncer"
)

// stores bundles the storage handles a query command needs.
type stores struct {
	root string
	log  *eventlog.Log
	idx  *index.Store
	sem  *embedding.Service
}

// openStores opens the event log and index under the resolved storage root,
// plus the embedding service when an encoder endpoint is configured.
func openStores(opts *RootOptions) (*stores, error) {
	root := storageRoot(opts)

	log, err := eventlog.Open(root)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open event log", err)
	}

	idx, err := index.Open(config.IndexDBPath(root))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open index", err)
	}

	s := &stores{root: root, log: log, idx: idx}

	cfg, err := config.Load(root)
	if err != nil {
		idx.Close()
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if cfg.Embedding.Endpoint != "" {
		store, err := embedding.Open(config.EmbeddingsDBPath(root), cfg.Embedding.Dimension)
		if err != nil {
			idx.Close()
			return nil, WrapExitError(ExitCommandError, "open embeddings", err)
		}
		enc := embedding.NewHTTPEncoder(
			cfg.Embedding.Endpoint,
			cfg.Embedding.Model,
			cfg.Embedding.APIKey,
			cfg.Embedding.Dimension,
		)
		s.sem = embedding.NewService(enc, store)
	}

	return s, nil
}

func (s *stores) Close() {
	if s.idx != nil {
		s.idx.Close()
	}
	if s.sem != nil && s.sem.Store() != nil {
		s.sem.Store().Close()
	}
}

// syncAll refreshes the index before a read so queries see everything
// appended up to now.
func (s *stores) syncAll(ctx context.Context) (int, error) {
	n, err := syncer.New(s.log, s.idx, nil).SyncAll(ctx)
	if err != nil {
		return n, fmt.Errorf("sync: %w", err)
	}
	return n, nil
}
