package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/errs"
)

const opOpenAI = "embedding.OpenAI"

// OpenAI calls an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	Cli        *openai.Client
	Model      string
	Dimensions int64
	Timeout    time.Duration
}

func NewOpenAI(cli *openai.Client, model string, dimensions int64, timeout time.Duration) *OpenAI {
	return &OpenAI{
		Cli:        cli,
		Model:      model,
		Dimensions: dimensions,
		Timeout:    timeout,
	}
}

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.New(errs.Validation, opOpenAI, "text is empty")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	params := openai.EmbeddingNewParams{
		Input:          openai.F[openai.EmbeddingNewParamsInputUnion](shared.UnionString(text)),
		Model:          openai.String(e.Model),
		EncodingFormat: openai.F(openai.EmbeddingNewParamsEncodingFormatFloat),
	}
	if e.Dimensions > 0 {
		params.Dimensions = openai.Int(e.Dimensions)
	}

	start := time.Now()
	resp, err := e.Cli.Embeddings.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.Timeout, opOpenAI, err)
		}
		return nil, errs.Wrap(errs.EmbeddingService, opOpenAI, err)
	}
	if len(resp.Data) == 0 {
		return nil, errs.New(errs.EmbeddingService, opOpenAI, "no embedding in response")
	}
	raw := resp.Data[0].Embedding
	if e.Dimensions > 0 && int64(len(raw)) != e.Dimensions {
		return nil, errs.New(errs.EmbeddingService, opOpenAI,
			fmt.Sprintf("provider returned %d dimensions, expected %d", len(raw), e.Dimensions))
	}
	embedding := make([]float32, len(raw))
	for i, v := range raw {
		embedding[i] = float32(v)
	}
	log.Debug().Str("model", e.Model).Int("dimensions", len(embedding)).Dur("took", time.Since(start)).Msg("Generated embedding")
	return embedding, nil
}
