package generator

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/prompt"
)

const opOpenAI = "generator.OpenAI"

// OpenAI generates SQL with an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	Cli         *openai.Client
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func NewOpenAI(cli *openai.Client, model string, temperature float64, timeout time.Duration) *OpenAI {
	return &OpenAI{
		Cli:         cli,
		Model:       model,
		Temperature: temperature,
		Timeout:     timeout,
	}
}

func (g *OpenAI) Generate(ctx context.Context, c prompt.Context) (string, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(chatMessages(c.Messages())),
		Model:       openai.String(g.Model),
		Seed:        openai.Int(1),
		Temperature: openai.Float(g.Temperature),
	}

	start := time.Now()
	completion, err := g.Cli.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errs.Wrap(errs.Timeout, opOpenAI, err)
		}
		return "", errs.Wrap(errs.GenerationService, opOpenAI, err)
	}
	if len(completion.Choices) == 0 {
		return "", errs.New(errs.GenerationService, opOpenAI, "empty chat completion choices")
	}
	content := completion.Choices[0].Message.Content
	log.Debug().Str("model", g.Model).Dur("took", time.Since(start)).Msgf("Completion: %s", content)

	sql := ExtractSQL(content)
	if sql == "" {
		return "", errs.New(errs.EmptyGeneration, opOpenAI, "model returned no SQL")
	}
	return sql, nil
}

func chatMessages(msgs []prompt.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case prompt.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
