package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("ddl")
	require.NoError(t, err)
	assert.Equal(t, Schema, k)

	k, err = ParseKind("question_sql")
	require.NoError(t, err)
	assert.Equal(t, QuestionSQLPair, k)

	_, err = ParseKind("documentation")
	assert.Error(t, err)
}

func TestEmbeddingText(t *testing.T) {
	schema := Item{Kind: Schema, Content: "CREATE TABLE t(id INTEGER);"}
	pair := Item{Kind: QuestionSQLPair, Question: "How many t?", SQL: "SELECT COUNT(*) FROM t;"}

	assert.Equal(t, "CREATE TABLE t(id INTEGER);", schema.EmbeddingText())
	assert.Equal(t, "How many t?", pair.EmbeddingText())
}

func TestViewOmitsEmbedding(t *testing.T) {
	item := Item{ID: 7, Kind: QuestionSQLPair, Question: "q", SQL: "SELECT 1", Embedding: []float32{1, 2}}

	assert.Equal(t, View{ID: 7, Kind: "question_sql", Question: "q", SQL: "SELECT 1"}, item.View())
}
