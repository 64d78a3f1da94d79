package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/doubletabai/askdb/pkg/errs"
)

const DefaultHashDimensions = 256

// Hashing is an offline embedder: lower-cased word tokens are hashed into signed buckets
// and the result is L2-normalized. Texts sharing vocabulary end up close to each other,
// which is enough for local runs and tests without an embedding provider.
type Hashing struct {
	Dimensions int
}

func NewHashing(dimensions int) *Hashing {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &Hashing{Dimensions: dimensions}
}

func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, errs.New(errs.Validation, "embedding.Hashing", "text has no tokens to embed")
	}
	vec := make([]float32, h.Dimensions)
	for _, tok := range tokens {
		hs := fnv.New64a()
		_, _ = hs.Write([]byte(tok))
		sum := hs.Sum64()
		bucket := int(sum % uint64(h.Dimensions))
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}
	NormalizeL2(vec)
	return vec, nil
}

// Tokenize splits text into lower-cased alphanumeric words with a trailing plural "s" removed.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		out = append(out, f)
	}
	return out
}
