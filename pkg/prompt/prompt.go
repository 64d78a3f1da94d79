// Package prompt assembles the generation context for one question.
package prompt

import (
	"cmp"
	"slices"
	"strings"

	"github.com/doubletabai/askdb/pkg/training"
	"github.com/doubletabai/askdb/pkg/vector"
)

const systemPrompt = `You are a SQL expert. Write a single SQL query that answers the user's question.

- Use only the tables and columns defined in the schema below.
- Follow the style of the example queries when they are relevant.
- Return only the SQL statement, without explanation.`

type Pair struct {
	Question string
	SQL      string
}

// Context is the deterministic input to a Generator. Schemas and Examples keep their
// retrieval ranking order.
type Context struct {
	Question string
	Schemas  []string
	Examples []Pair
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Messages renders the chat transcript: instructions and schemas as the system message,
// every example as a user/assistant turn, and finally the question.
func (c Context) Messages() []Message {
	var sys strings.Builder
	sys.WriteString(systemPrompt)
	if len(c.Schemas) > 0 {
		sys.WriteString("\n\n===Schema\n")
		for _, s := range c.Schemas {
			sys.WriteString("\n")
			sys.WriteString(strings.TrimSpace(s))
			sys.WriteString("\n")
		}
	}

	msgs := make([]Message, 0, 2+2*len(c.Examples))
	msgs = append(msgs, Message{Role: RoleSystem, Content: sys.String()})
	for _, ex := range c.Examples {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: ex.Question},
			Message{Role: RoleAssistant, Content: ex.SQL},
		)
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: c.Question})
	return msgs
}

// Searcher is the part of the vector index the builder needs.
type Searcher interface {
	SearchKind(query []float32, k int, kind training.Kind) (vector.Result, error)
}

// Builder retrieves the top K items of each kind independently, so many schema fragments
// cannot starve example retrieval or the reverse.
type Builder struct {
	Index Searcher
	K     int
	// MaxChars bounds the characters contributed by retrieved items; 0 disables the bound.
	MaxChars int
}

func NewBuilder(index Searcher, k, maxChars int) *Builder {
	return &Builder{Index: index, K: k, MaxChars: maxChars}
}

// Retrieve runs one search per kind and concatenates the results, schemas first.
func (b *Builder) Retrieve(query []float32) (vector.Result, error) {
	schemas, err := b.Index.SearchKind(query, b.K, training.Schema)
	if err != nil {
		return nil, err
	}
	pairs, err := b.Index.SearchKind(query, b.K, training.QuestionSQLPair)
	if err != nil {
		return nil, err
	}
	return append(schemas, pairs...), nil
}

func (b *Builder) Build(question string, query []float32) (Context, error) {
	res, err := b.Retrieve(query)
	if err != nil {
		return Context{}, err
	}
	return b.Assemble(question, res), nil
}

// Assemble splits res by kind preserving order. When MaxChars is set, the lowest scoring
// items are dropped first (later-inserted first among equal scores) until the rest fit.
func (b *Builder) Assemble(question string, res vector.Result) Context {
	if b.MaxChars > 0 {
		res = fit(res, b.MaxChars)
	}
	c := Context{Question: question}
	for _, h := range res {
		switch h.Item.Kind {
		case training.Schema:
			c.Schemas = append(c.Schemas, h.Item.Content)
		case training.QuestionSQLPair:
			c.Examples = append(c.Examples, Pair{Question: h.Item.Question, SQL: h.Item.SQL})
		}
	}
	return c
}

func fit(res vector.Result, maxChars int) vector.Result {
	total := 0
	for _, h := range res {
		total += h.Item.Len()
	}
	if total <= maxChars {
		return res
	}

	order := make([]int, len(res))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(res[a].Score, res[b].Score); c != 0 {
			return c
		}
		return cmp.Compare(res[b].Item.ID, res[a].Item.ID)
	})
	dropped := make(map[int]bool)
	for _, i := range order {
		if total <= maxChars {
			break
		}
		dropped[i] = true
		total -= res[i].Item.Len()
	}

	kept := make(vector.Result, 0, len(res)-len(dropped))
	for i, h := range res {
		if !dropped[i] {
			kept = append(kept, h)
		}
	}
	return kept
}
