package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doubletabai/askdb/pkg/config"
	"github.com/doubletabai/askdb/pkg/corpus"
	"github.com/doubletabai/askdb/pkg/embedding"
	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/prompt"
	"github.com/doubletabai/askdb/pkg/training"
)

const (
	customersDDL = "CREATE TABLE customers(id INTEGER, name TEXT);"
	customersQ   = "How many customers?"
	customersSQL = "SELECT COUNT(*) FROM customers;"
)

// flakyEmbedder fails the first failures calls with an embedding service error.
type flakyEmbedder struct {
	mu       sync.Mutex
	inner    embedding.Embedder
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, errs.Wrap(errs.EmbeddingService, "test", errors.New("503 service unavailable"))
	}
	return f.inner.Embed(ctx, text)
}

type scriptedGenerator struct {
	mu       sync.Mutex
	errs     []error
	sql      string
	calls    int
	contexts []prompt.Context
}

func (g *scriptedGenerator) Generate(_ context.Context, c prompt.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.contexts = append(g.contexts, c)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return "", err
	}
	return g.sql, nil
}

func counterValue(t *testing.T, c *prometheus.CounterVec, label string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.WithLabelValues(label).Write(&m))
	return m.GetCounter().GetValue()
}

type fixture struct {
	svc *Service
	emb *flakyEmbedder
	gen *scriptedGenerator
	reg *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := corpus.OpenStore(ctx, config.DriverSQLite, filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	emb := &flakyEmbedder{inner: embedding.NewHashing(embedding.DefaultHashDimensions)}
	c, err := corpus.Open(ctx, store, emb)
	require.NoError(t, err)

	target, err := sqlx.Open(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	target.SetMaxOpenConns(1)
	t.Cleanup(func() { target.Close() })
	_, err = target.Exec(`CREATE TABLE customers(id INTEGER, name TEXT);
INSERT INTO customers(id, name) VALUES (1, 'Alice'), (2, 'Bob');`)
	require.NoError(t, err)

	gen := &scriptedGenerator{sql: customersSQL}
	reg := prometheus.NewRegistry()
	svc := New(c, c.Index, emb, gen,
		executor.New(target, config.DriverSQLite, true, 0, time.Second),
		5, 0, RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond}, NewMetrics(reg))
	return &fixture{svc: svc, emb: emb, gen: gen, reg: reg}
}

func (f *fixture) train(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Train(ctx, training.Schema, Payload{Content: customersDDL})
	require.NoError(t, err)
	_, err = f.svc.Train(ctx, training.QuestionSQLPair, Payload{Question: customersQ, SQL: customersSQL})
	require.NoError(t, err)
}

func TestAskAnswersFromTrainedCorpus(t *testing.T) {
	f := newFixture(t)
	f.train(t)

	ans, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.NoError(t, err)
	assert.Equal(t, Done, ans.Stage)
	assert.NotEmpty(t, ans.RequestID)
	assert.Equal(t, customersSQL, ans.SQL)
	assert.Equal(t, []string{"COUNT(*)"}, ans.Columns)
	assert.Equal(t, []executor.Row{{"COUNT(*)": int64(2)}}, ans.Rows)

	require.Len(t, f.gen.contexts, 1)
	pc := f.gen.contexts[0]
	assert.Equal(t, []string{customersDDL}, pc.Schemas)
	assert.Equal(t, []prompt.Pair{{Question: customersQ, SQL: customersSQL}}, pc.Examples)

	assert.Equal(t, 1.0, counterValue(t, f.svc.Metrics.asksTotal, "done"))
	assert.Equal(t, 1.0, counterValue(t, f.svc.Metrics.trainedTotal, "schema"))
}

func TestAskEmptyQuestionFailsFast(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ask(context.Background(), "   ")
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Zero(t, f.emb.calls)
	assert.Zero(t, f.gen.calls)
}

func TestAskPassesQuestionVerbatim(t *testing.T) {
	f := newFixture(t)
	f.train(t)

	q := "  How many customers are there?\n"
	_, err := f.svc.Ask(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, f.gen.contexts, 1)
	assert.Equal(t, q, f.gen.contexts[0].Question)
}

func TestAskKeepsSQLWhenExecutionFails(t *testing.T) {
	f := newFixture(t)
	f.train(t)
	f.gen.sql = "SELEC 1"

	ans, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.ErrorIs(t, err, errs.ErrSQLSyntax)
	assert.Equal(t, "SELEC 1", ans.SQL)
	assert.Equal(t, Executing, ans.Stage)
	assert.Equal(t, 1.0, counterValue(t, f.svc.Metrics.asksTotal, "executing"))
}

func TestAskIsDeterministic(t *testing.T) {
	f := newFixture(t)
	f.train(t)

	first, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.NoError(t, err)
	second, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
	require.Len(t, f.gen.contexts, 2)
	assert.Equal(t, f.gen.contexts[0].Messages(), f.gen.contexts[1].Messages())
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestAskRetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	f.train(t)
	f.emb.failures = f.emb.calls + 2
	f.gen.errs = []error{errs.Wrap(errs.GenerationService, "test", errors.New("429 rate limited"))}

	ans, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.NoError(t, err)
	assert.Equal(t, Done, ans.Stage)
	assert.Equal(t, 2, f.gen.calls)
	assert.Equal(t, 2.0, counterValue(t, f.svc.Metrics.retriesTotal, "embed"))
	assert.Equal(t, 1.0, counterValue(t, f.svc.Metrics.retriesTotal, "generate"))
}

func TestAskGivesUpAfterBoundedAttempts(t *testing.T) {
	f := newFixture(t)
	f.train(t)
	before := f.emb.calls
	f.emb.failures = before + 10

	ans, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.ErrorIs(t, err, errs.ErrEmbeddingService)
	assert.Equal(t, Embedding, ans.Stage)
	assert.Equal(t, 3, f.emb.calls-before)
	assert.Zero(t, f.gen.calls)
}

// cancelingEmbedder fails with a transient error and cancels the request while doing so.
type cancelingEmbedder struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancelingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.calls++
	c.cancel()
	return nil, errs.Wrap(errs.EmbeddingService, "test", errors.New("502 bad gateway"))
}

func TestAskCanceledDuringRetryKeepsTypedError(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emb := &cancelingEmbedder{cancel: cancel}
	f.svc.Embedder = emb

	ans, err := f.svc.Ask(ctx, "How many customers are there?")
	require.ErrorIs(t, err, errs.ErrEmbeddingService)
	assert.Equal(t, errs.EmbeddingService, errs.KindOf(err))
	assert.Equal(t, Embedding, ans.Stage)
	assert.Equal(t, 1, emb.calls)
}

func TestAskDoesNotRetryPermanentFailures(t *testing.T) {
	f := newFixture(t)
	f.train(t)
	f.gen.errs = []error{
		errs.New(errs.EmptyGeneration, "test", "model returned no SQL"),
		errs.Wrap(errs.Timeout, "test", context.DeadlineExceeded),
	}

	ans, err := f.svc.Ask(context.Background(), "How many customers are there?")
	require.ErrorIs(t, err, errs.ErrEmptyGeneration)
	assert.Equal(t, Generating, ans.Stage)
	assert.Empty(t, ans.SQL)
	assert.Equal(t, 1, f.gen.calls)

	_, err = f.svc.Ask(context.Background(), "How many customers are there?")
	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, 2, f.gen.calls)
}

func TestTrainRetriesEmbeddingAndValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.emb.failures = 1

	id, err := f.svc.TrainSchema(ctx, customersDDL)
	require.NoError(t, err)
	assert.Equal(t, 2, f.emb.calls)

	_, err = f.svc.TrainPair(ctx, customersQ, "")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.Train(ctx, training.Kind(0), Payload{Content: "x"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	views, err := f.svc.ListTraining(ctx)
	require.NoError(t, err)
	assert.Equal(t, []training.View{{ID: id, Kind: training.Schema.String(), Content: customersDDL}}, views)
}

func TestTrainingManagement(t *testing.T) {
	f := newFixture(t)
	f.train(t)
	ctx := context.Background()

	views, err := f.svc.ListTraining(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	v, err := f.svc.GetTraining(ctx, views[1].ID)
	require.NoError(t, err)
	assert.Equal(t, customersQ, v.Question)

	require.NoError(t, f.svc.RemoveTraining(ctx, views[0].ID))
	assert.ErrorIs(t, f.svc.RemoveTraining(ctx, views[0].ID), errs.ErrNotFound)
	_, err = f.svc.GetTraining(ctx, views[0].ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, f.svc.ResetTraining(ctx))
	views, err = f.svc.ListTraining(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)

	h, err := f.svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{TargetReachable: true, TrainingItems: 0}, h)
}

func TestExecuteRawAndTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ExecuteRaw(ctx, "SELECT name FROM customers ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []executor.Row{{"name": "Alice"}, {"name": "Bob"}}, res.Rows)

	_, err = f.svc.ExecuteRaw(ctx, "DROP TABLE customers")
	assert.ErrorIs(t, err, errs.ErrValidation)

	tables, err := f.svc.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers"}, tables)
	assert.Zero(t, f.gen.calls)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "prompt_building", PromptBuilding.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
