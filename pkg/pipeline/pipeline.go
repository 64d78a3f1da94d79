// Package pipeline answers questions by chaining embedding, retrieval, prompt assembly,
// generation and execution, and routes training requests to the corpus.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/embedding"
	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/generator"
	"github.com/doubletabai/askdb/pkg/prompt"
	"github.com/doubletabai/askdb/pkg/training"
)

// Corpus is the training store the pipeline trains and reads.
type Corpus interface {
	AddSchema(ctx context.Context, text string) (int64, error)
	AddPair(ctx context.Context, question, sqlText string) (int64, error)
	All(ctx context.Context) ([]training.Item, error)
	Get(ctx context.Context, id int64) (training.Item, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Reset(ctx context.Context) error
	Len() int
}

// Executor runs SQL against the target database.
type Executor interface {
	Execute(ctx context.Context, stmt string) (executor.Result, error)
	Tables(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type Service struct {
	Corpus    Corpus
	Embedder  embedding.Embedder
	Builder   *prompt.Builder
	Generator generator.Generator
	Executor  Executor
	Retry     RetryPolicy
	Metrics   *Metrics
}

func New(c Corpus, search prompt.Searcher, emb embedding.Embedder, gen generator.Generator, exec Executor, k, maxChars int, retry RetryPolicy, m *Metrics) *Service {
	return &Service{
		Corpus:    c,
		Embedder:  emb,
		Builder:   prompt.NewBuilder(search, k, maxChars),
		Generator: gen,
		Executor:  exec,
		Retry:     retry,
		Metrics:   m,
	}
}

// Answer is the result of one ask. When execution fails, SQL still holds the generated
// statement and Stage is Executing.
type Answer struct {
	RequestID string `json:"request_id"`
	SQL       string `json:"sql,omitempty"`
	executor.Result
	// Stage is Done on success, otherwise the stage that failed.
	Stage Stage `json:"stage"`
}

func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	ans := Answer{RequestID: uuid.NewString(), Stage: Embedding}
	logger := log.With().Str("request_id", ans.RequestID).Logger()

	if strings.TrimSpace(question) == "" {
		return s.fail(logger, ans, errs.New(errs.Validation, "pipeline.Ask", "question is required"))
	}
	logger.Debug().Str("question", question).Msg("Asking")

	start := time.Now()
	var query []float32
	err := s.retry(ctx, logger, "embed", func() error {
		var err error
		query, err = s.Embedder.Embed(ctx, question)
		return err
	})
	s.Metrics.observeStage(Embedding, start)
	if err != nil {
		return s.fail(logger, ans, err)
	}

	ans.Stage = Retrieving
	start = time.Now()
	res, err := s.Builder.Retrieve(query)
	s.Metrics.observeStage(Retrieving, start)
	if err != nil {
		return s.fail(logger, ans, err)
	}
	logger.Debug().Int("hits", len(res)).Msg("Retrieved training items")

	ans.Stage = PromptBuilding
	start = time.Now()
	pc := s.Builder.Assemble(question, res)
	s.Metrics.observeStage(PromptBuilding, start)

	ans.Stage = Generating
	start = time.Now()
	err = s.retry(ctx, logger, "generate", func() error {
		var err error
		ans.SQL, err = s.Generator.Generate(ctx, pc)
		return err
	})
	s.Metrics.observeStage(Generating, start)
	if err != nil {
		return s.fail(logger, ans, err)
	}
	logger.Debug().Str("sql", ans.SQL).Msg("Generated SQL")

	ans.Stage = Executing
	start = time.Now()
	ans.Result, err = s.Executor.Execute(ctx, ans.SQL)
	s.Metrics.observeStage(Executing, start)
	if err != nil {
		return s.fail(logger, ans, err)
	}

	ans.Stage = Done
	s.Metrics.recordAsk(Done)
	logger.Info().Int("rows", len(ans.Rows)).Msg("Question answered")
	return ans, nil
}

func (s *Service) fail(logger zerolog.Logger, ans Answer, err error) (Answer, error) {
	s.Metrics.recordAsk(ans.Stage)
	logger.Warn().Err(err).Str("stage", ans.Stage.String()).Str("kind", errs.KindOf(err).String()).Msg("Ask failed")
	return ans, err
}

// Payload carries the fields of a training request; which are used depends on the kind.
type Payload struct {
	Content  string `json:"content,omitempty"`
	Question string `json:"question,omitempty"`
	SQL      string `json:"sql,omitempty"`
}

// Train returns once the item is stored and searchable.
func (s *Service) Train(ctx context.Context, kind training.Kind, p Payload) (int64, error) {
	switch kind {
	case training.Schema:
		return s.TrainSchema(ctx, p.Content)
	case training.QuestionSQLPair:
		return s.TrainPair(ctx, p.Question, p.SQL)
	default:
		return 0, errs.New(errs.Validation, "pipeline.Train", "unknown training kind")
	}
}

func (s *Service) TrainSchema(ctx context.Context, text string) (int64, error) {
	var id int64
	err := s.retry(ctx, log.Logger, "train_schema", func() error {
		var err error
		id, err = s.Corpus.AddSchema(ctx, text)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.Metrics.recordTrained(training.Schema.String())
	return id, nil
}

func (s *Service) TrainPair(ctx context.Context, question, sqlText string) (int64, error) {
	var id int64
	err := s.retry(ctx, log.Logger, "train_pair", func() error {
		var err error
		id, err = s.Corpus.AddPair(ctx, question, sqlText)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.Metrics.recordTrained(training.QuestionSQLPair.String())
	return id, nil
}

func (s *Service) ListTraining(ctx context.Context) ([]training.View, error) {
	items, err := s.Corpus.All(ctx)
	if err != nil {
		return nil, err
	}
	return training.Views(items), nil
}

func (s *Service) GetTraining(ctx context.Context, id int64) (training.View, error) {
	it, err := s.Corpus.Get(ctx, id)
	if err != nil {
		return training.View{}, err
	}
	return it.View(), nil
}

// RemoveTraining fails NotFound when no item has the id.
func (s *Service) RemoveTraining(ctx context.Context, id int64) error {
	ok, err := s.Corpus.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.NotFound, "pipeline.RemoveTraining", "training item not found")
	}
	return nil
}

func (s *Service) ResetTraining(ctx context.Context) error {
	return s.Corpus.Reset(ctx)
}

// ExecuteRaw runs sql directly, bypassing generation.
func (s *Service) ExecuteRaw(ctx context.Context, sql string) (executor.Result, error) {
	return s.Executor.Execute(ctx, sql)
}

func (s *Service) Tables(ctx context.Context) ([]string, error) {
	return s.Executor.Tables(ctx)
}

type Health struct {
	TargetReachable bool `json:"target_reachable"`
	TrainingItems   int  `json:"training_items"`
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	h := Health{TrainingItems: s.Corpus.Len()}
	if err := s.Executor.Ping(ctx); err != nil {
		return h, err
	}
	h.TargetReachable = true
	return h, nil
}
