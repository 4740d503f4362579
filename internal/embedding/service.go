package embedding

import (
	"context"
	"fmt"
)

// Service ties an encoder to a vector store. A nil service, or one without
// an encoder, is valid: every query returns empty results so downstream
// semantic behavior degrades to no contribution rather than failing.
type Service struct {
	enc      Encoder
	store    *Store
	searcher Searcher
}

// NewService wires an encoder to a store. The similarity backend is
// selected here, once, from the store's detected capability.
func NewService(enc Encoder, store *Store) *Service {
	s := &Service{enc: enc, store: store}
	if store != nil {
		s.searcher = store.Searcher()
	}
	return s
}

// Available reports whether semantic operations can produce results.
func (s *Service) Available() bool {
	return s != nil && s.enc != nil && s.store != nil
}

// Query encodes a text query and returns its nearest stored events.
func (s *Service) Query(ctx context.Context, text string, limit int, eventTypes []string) ([]Match, error) {
	if !s.Available() {
		return []Match{}, nil
	}
	vectors, err := s.enc.Encode(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	if len(vectors) == 0 {
		return []Match{}, nil
	}
	return s.searcher.Search(ctx, vectors[0], limit, eventTypes)
}

// IndexEvent encodes one event's content and stores the vector. A no-op
// without an encoder.
func (s *Service) IndexEvent(ctx context.Context, eventID, content string, meta Metadata) error {
	if !s.Available() {
		return nil
	}
	vectors, err := s.enc.Encode(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("index event %s: %w", eventID, err)
	}
	if len(vectors) == 0 {
		return nil
	}
	return s.store.Upsert(ctx, eventID, vectors[0], meta)
}

// Store exposes the underlying vector store for backfill.
func (s *Service) Store() *Store {
	if s == nil {
		return nil
	}
	return s.store
}

// Encoder exposes the injected encoder for backfill.
func (s *Service) Encoder() Encoder {
	if s == nil {
		return nil
	}
	return s.enc
}
