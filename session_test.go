package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/pipeline"
	"github.com/doubletabai/askdb/pkg/training"
)

type fakeService struct {
	asked   []string
	trained []pipeline.Payload
	removed []int64
	raw     []string
}

func (f *fakeService) Ask(_ context.Context, q string) (pipeline.Answer, error) {
	f.asked = append(f.asked, q)
	return pipeline.Answer{SQL: "SELECT 1 AS x", Result: executor.Result{Columns: []string{"x"}, Rows: []executor.Row{{"x": int64(1)}}}, Stage: pipeline.Done}, nil
}

func (f *fakeService) Train(_ context.Context, _ training.Kind, p pipeline.Payload) (int64, error) {
	f.trained = append(f.trained, p)
	return int64(len(f.trained)), nil
}

func (f *fakeService) ListTraining(context.Context) ([]training.View, error) { return nil, nil }

func (f *fakeService) GetTraining(_ context.Context, id int64) (training.View, error) {
	return training.View{}, errs.New(errs.NotFound, "fake", "training item not found")
}

func (f *fakeService) RemoveTraining(_ context.Context, id int64) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeService) ResetTraining(context.Context) error { return nil }

func (f *fakeService) ExecuteRaw(_ context.Context, sql string) (executor.Result, error) {
	f.raw = append(f.raw, sql)
	return executor.Result{}, nil
}

func (f *fakeService) Tables(context.Context) ([]string, error) { return []string{"users"}, nil }

func (f *fakeService) Health(context.Context) (pipeline.Health, error) {
	return pipeline.Health{TargetReachable: true}, nil
}

func TestParseCommand(t *testing.T) {
	name, arg := parseCommand("  How many users?  ")
	assert.Equal(t, "", name)
	assert.Equal(t, "How many users?", arg)

	name, arg = parseCommand("/SQL   SELECT 1")
	assert.Equal(t, "sql", name)
	assert.Equal(t, "SELECT 1", arg)

	name, arg = parseCommand("/list")
	assert.Equal(t, "list", name)
	assert.Empty(t, arg)
}

func TestParsePair(t *testing.T) {
	p, err := parsePair("How many users? => SELECT COUNT(*) FROM users;")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Payload{Question: "How many users?", SQL: "SELECT COUNT(*) FROM users;"}, p)

	_, err = parsePair("no separator")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestHandleDispatch(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{}
	s := newSession(svc)

	require.NoError(t, s.handle(ctx, "How many users?"))
	require.NoError(t, s.handle(ctx, "/pair q => SELECT 1"))
	require.NoError(t, s.handle(ctx, "/schema CREATE TABLE t (id INT)"))
	require.NoError(t, s.handle(ctx, "/remove 7"))
	require.NoError(t, s.handle(ctx, "/sql SELECT 2"))
	require.NoError(t, s.handle(ctx, ""))

	assert.Equal(t, []string{"How many users?"}, svc.asked)
	assert.Equal(t, []pipeline.Payload{{Question: "q", SQL: "SELECT 1"}, {Content: "CREATE TABLE t (id INT)"}}, svc.trained)
	assert.Equal(t, []int64{7}, svc.removed)
	assert.Equal(t, []string{"SELECT 2"}, svc.raw)

	assert.ErrorIs(t, s.handle(ctx, "/remove abc"), errs.ErrValidation)
	assert.ErrorIs(t, s.handle(ctx, "/show 3"), errs.ErrNotFound)
	assert.ErrorIs(t, s.handle(ctx, "/bogus"), errs.ErrValidation)
	assert.ErrorIs(t, s.handle(ctx, "/exit"), errQuit)
}
