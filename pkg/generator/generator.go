// Package generator turns a question and its retrieved context into SQL text.
package generator

import (
	"context"
	"regexp"
	"strings"

	"github.com/doubletabai/askdb/pkg/prompt"
)

// Generator does not retry; callers decide on retries.
type Generator interface {
	Generate(ctx context.Context, c prompt.Context) (string, error)
}

var (
	statementStart = regexp.MustCompile(`(?i)^(SELECT|WITH|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|PRAGMA|EXPLAIN)\b`)
	languageTag    = regexp.MustCompile(`^[A-Za-z0-9_+-]*$`)
)

// ExtractSQL pulls the statement out of a model response:
//  1. the body of the first fenced block, minus a language tag such as "sql";
//  2. otherwise from the first line starting with a statement keyword up to the last ';';
//  3. otherwise the whole trimmed response.
func ExtractSQL(response string) string {
	if open := strings.Index(response, "```"); open >= 0 {
		body := response[open+3:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(body[:nl]); languageTag.MatchString(tag) && !statementStart.MatchString(tag) {
				body = body[nl+1:]
			}
		}
		return strings.TrimSpace(body)
	}

	lines := strings.Split(response, "\n")
	for i, line := range lines {
		if !statementStart.MatchString(strings.TrimSpace(line)) {
			continue
		}
		rest := strings.Join(lines[i:], "\n")
		if semi := strings.LastIndexByte(rest, ';'); semi >= 0 {
			rest = rest[:semi+1]
		}
		return strings.TrimSpace(rest)
	}

	return strings.TrimSpace(response)
}
