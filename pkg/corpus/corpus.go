// Package corpus is the durable training corpus: schema fragments and question/SQL pairs,
// each stored with its embedding and mirrored into a vector index.
package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/embedding"
	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/training"
	"github.com/doubletabai/askdb/pkg/vector"
)

// Corpus serializes mutations so that the store and the index change together. Every
// mutating call has updated the index by the time it returns.
type Corpus struct {
	mu       sync.Mutex
	Store    *Store
	Embedder embedding.Embedder
	Index    *vector.Index
}

// Open loads every stored item into a fresh index. A stored vector whose length differs
// from the recorded corpus dimension fails with errs.DimensionMismatch.
func Open(ctx context.Context, store *Store, emb embedding.Embedder) (*Corpus, error) {
	dim, err := store.Dimension(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "corpus.Open", err)
	}
	items, err := store.List(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "corpus.Open", err)
	}
	idx := vector.New(dim)
	if err := idx.Rebuild(items); err != nil {
		return nil, err
	}
	log.Debug().Int("items", len(items)).Int("dimension", idx.Dimension()).Msg("Loaded training corpus")
	return &Corpus{Store: store, Embedder: emb, Index: idx}, nil
}

func (c *Corpus) AddSchema(ctx context.Context, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errs.New(errs.Validation, "corpus.AddSchema", "schema text is required")
	}
	return c.add(ctx, training.Item{Kind: training.Schema, Content: text})
}

func (c *Corpus) AddPair(ctx context.Context, question, sqlText string) (int64, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(sqlText) == "" {
		return 0, errs.New(errs.Validation, "corpus.AddPair", "both question and sql are required")
	}
	return c.add(ctx, training.Item{Kind: training.QuestionSQLPair, Question: question, SQL: sqlText})
}

func (c *Corpus) add(ctx context.Context, it training.Item) (int64, error) {
	op := "corpus.Add"
	vec, err := c.Embedder.Embed(ctx, it.EmbeddingText())
	if err != nil {
		return 0, err
	}
	it.Embedding = vec

	c.mu.Lock()
	defer c.mu.Unlock()

	dim := c.Index.Dimension()
	if dim != 0 && len(vec) != dim {
		return 0, errs.New(errs.DimensionMismatch, op,
			fmt.Sprintf("embedding has %d dimensions, corpus has %d", len(vec), dim))
	}
	if dim == 0 {
		if err := c.Store.SetDimension(ctx, len(vec)); err != nil {
			return 0, errs.Wrap(errs.Storage, op, err)
		}
	}
	id, err := c.Store.Insert(ctx, it)
	if err != nil {
		return 0, errs.Wrap(errs.Storage, op, err)
	}
	it.ID = id
	if err := c.Index.Upsert(it); err != nil {
		if _, derr := c.Store.Delete(ctx, id); derr != nil {
			log.Error().Err(derr).Int64("id", id).Msg("Failed to roll back training item")
		}
		return 0, err
	}
	log.Info().Int64("id", id).Str("kind", it.Kind.String()).Msg("Training item added")
	return id, nil
}

// All returns items in insertion order without their embeddings.
func (c *Corpus) All(ctx context.Context) ([]training.Item, error) {
	items, err := c.Store.List(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "corpus.All", err)
	}
	for i := range items {
		items[i].Embedding = nil
	}
	return items, nil
}

func (c *Corpus) Get(ctx context.Context, id int64) (training.Item, error) {
	it, err := c.Store.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return training.Item{}, errs.New(errs.NotFound, "corpus.Get", fmt.Sprintf("training item %d not found", id))
	}
	if err != nil {
		return training.Item{}, errs.Wrap(errs.Storage, "corpus.Get", err)
	}
	it.Embedding = nil
	return it, nil
}

func (c *Corpus) Remove(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.Store.Delete(ctx, id)
	if err != nil {
		return false, errs.Wrap(errs.Storage, "corpus.Remove", err)
	}
	c.Index.Remove(id)
	if removed {
		log.Info().Int64("id", id).Msg("Training item removed")
	}
	return removed, nil
}

// Reset removes every item. The next item fixes a new dimension.
func (c *Corpus) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Store.Truncate(ctx); err != nil {
		return errs.Wrap(errs.Storage, "corpus.Reset", err)
	}
	c.Index.Reset()
	log.Info().Msg("Training corpus reset")
	return nil
}

func (c *Corpus) Len() int {
	return c.Index.Len()
}
