// Package training holds the units of learned knowledge the corpus is built from.
package training

import "fmt"

// Kind is the closed set of trainable item types.
type Kind int

const (
	Schema Kind = iota + 1
	QuestionSQLPair
)

func (k Kind) String() string {
	switch k {
	case Schema:
		return "schema"
	case QuestionSQLPair:
		return "question_sql"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "schema", "ddl":
		return Schema, nil
	case "question_sql", "sql", "pair":
		return QuestionSQLPair, nil
	default:
		return 0, fmt.Errorf("unknown training kind %q", s)
	}
}

// Item is immutable once created. Embedding never leaves the core; use View for callers.
type Item struct {
	ID        int64
	Kind      Kind
	Content   string
	Question  string
	SQL       string
	Embedding []float32
}

// EmbeddingText is the canonical text an item's embedding is derived from.
func (i Item) EmbeddingText() string {
	switch i.Kind {
	case QuestionSQLPair:
		return i.Question
	default:
		return i.Content
	}
}

// Len is the number of characters the item contributes to a generation context.
func (i Item) Len() int {
	if i.Kind == QuestionSQLPair {
		return len(i.Question) + len(i.SQL)
	}
	return len(i.Content)
}

type View struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Question string `json:"question,omitempty"`
	SQL      string `json:"sql,omitempty"`
	Content  string `json:"content,omitempty"`
}

func (i Item) View() View {
	return View{
		ID:       i.ID,
		Kind:     i.Kind.String(),
		Question: i.Question,
		SQL:      i.SQL,
		Content:  i.Content,
	}
}

func Views(items []Item) []View {
	out := make([]View, len(items))
	for n, it := range items {
		out[n] = it.View()
	}
	return out
}
