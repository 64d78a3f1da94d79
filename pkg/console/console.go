// Package console renders pipeline results in the terminal.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/training"
)

const nullText = "NULL"

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner starts a spinner showing text. Finish it with Success or Fail.
func NewSpinner(text string) *pterm.SpinnerPrinter {
	spinner, _ := pterm.DefaultSpinner.WithSequence(spinnerFrames...).Start(text)
	spinner.SuccessPrinter = pterm.Success.WithPrefix(pterm.Prefix{Text: "DONE", Style: &pterm.ThemeDefault.SuccessPrefixStyle})
	spinner.FailPrinter = pterm.Error.WithPrefix(pterm.Prefix{Text: "FAILED", Style: &pterm.ThemeDefault.ErrorPrefixStyle})
	return spinner
}

// FormatValue renders one cell. NULL is kept distinct from the empty string.
func FormatValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return nullText
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}

// ResultTable returns the header row followed by one row per result row, in column order.
func ResultTable(res executor.Result) pterm.TableData {
	data := make(pterm.TableData, 0, len(res.Rows)+1)
	data = append(data, res.Columns)
	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			cells[i] = FormatValue(row[col])
		}
		data = append(data, cells)
	}
	return data
}

func TrainingTable(views []training.View) pterm.TableData {
	data := pterm.TableData{{"ID", "Kind", "Question", "SQL / Content"}}
	for _, v := range views {
		body := v.Content
		if v.Kind == training.QuestionSQLPair.String() {
			body = v.SQL
		}
		data = append(data, []string{strconv.FormatInt(v.ID, 10), v.Kind, v.Question, oneLine(body)})
	}
	return data
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func RenderSQL(sql string) {
	pterm.DefaultBox.WithTitle("SQL").Println(sql)
}

func RenderResult(res executor.Result) error {
	if len(res.Columns) == 0 {
		pterm.Info.Println("Statement executed, no result set.")
		return nil
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(ResultTable(res)).Render(); err != nil {
		return err
	}
	pterm.Info.Printfln("%d row(s)", len(res.Rows))
	if res.Truncated {
		pterm.Warning.Println("Result truncated, more rows are available.")
	}
	return nil
}

func RenderTraining(views []training.View) error {
	if len(views) == 0 {
		pterm.Info.Println("Training corpus is empty.")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(TrainingTable(views)).Render()
}

// RenderError prints err with its kind so input mistakes read differently from
// provider outages and failed SQL.
func RenderError(err error) {
	kind := errs.KindOf(err)
	switch kind {
	case errs.Validation, errs.NotFound:
		pterm.Warning.Println(err.Error())
	default:
		pterm.Error.Printfln("[%s] %v", kind, err)
	}
	var e *errs.Error
	if errors.As(err, &e) && e.SQL != "" {
		RenderSQL(e.SQL)
	}
}
