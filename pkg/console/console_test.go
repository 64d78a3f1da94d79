package console

import (
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"

	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/training"
)

func TestResultTableKeepsColumnOrderAndNulls(t *testing.T) {
	res := executor.Result{
		Columns: []string{"name", "country", "total"},
		Rows: []executor.Row{
			{"name": "Alice", "country": "", "total": 12.5},
			{"name": "Bob", "country": nil, "total": int64(3)},
		},
	}
	assert.Equal(t, pterm.TableData{
		{"name", "country", "total"},
		{"Alice", "", "12.5"},
		{"Bob", "NULL", "3"},
	}, ResultTable(res))
}

func TestTrainingTable(t *testing.T) {
	data := TrainingTable([]training.View{
		{ID: 1, Kind: training.Schema.String(), Content: "CREATE TABLE a (\n    id INTEGER\n)"},
		{ID: 2, Kind: training.QuestionSQLPair.String(), Question: "How many?", SQL: "SELECT COUNT(*) FROM a;"},
	})
	assert.Equal(t, []string{"1", "schema", "", "CREATE TABLE a ( id INTEGER )"}, data[1])
	assert.Equal(t, []string{"2", "question_sql", "How many?", "SELECT COUNT(*) FROM a;"}, data[2])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "2025-01-02T03:04:05Z", FormatValue("2025-01-02T03:04:05Z"))
}

func TestSpinnerStopsOnSuccess(t *testing.T) {
	spinner := NewSpinner("Working...")
	assert.True(t, spinner.IsActive)
	spinner.Success("done")
	assert.False(t, spinner.IsActive)
}
