// Package json provides JSON extraction utilities for parsing LLM responses.
//
// Language models often return JSON embedded in prose or fenced in
// markdown code blocks. This package extracts and parses JSON from such
// responses, and offers a parse-or-fallback form for callers whose
// liveness must not depend on the model behaving.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON finds and returns the JSON portion of a response string.
// Handles three common patterns:
// 1. Pure JSON response
// 2. JSON wrapped in markdown code fences (```json ... ```)
// 3. A JSON object embedded in text (first '{' to last '}')
//
// Limitations: objects only, simple brace matching.
func extractJSON(response string) (string, error) {
	response = stripCodeFences(response)

	var probe interface{}
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end > start {
			candidate := response[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
				return candidate, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// stripCodeFences removes markdown code fence markers from a response.
func stripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	return trimmed
}

// Extract parses the JSON object found in an LLM response into T.
// Returns an error when no valid object can be recovered.
func Extract[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// Decode is the parse-or-fallback form of Extract: it reports malformed
// output via the boolean rather than an error, so callers branch on the
// tag and substitute a deterministic default. The model is advisory,
// never load-bearing.
func Decode[T any](response string) (T, bool) {
	result, err := Extract[T](response)
	return result, err == nil
}
