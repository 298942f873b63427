// Package nodes implements the agent nodes of the evolutionary beam search
// graph: decomposition, research, distillation, generation, judging,
// evolution, propagation, scheduling, and execution.
package nodes

import (
	"encoding/json"
	"strings"
)

// extractJSONObject attempts to parse text as a JSON object into v. LLM
// output is rarely clean JSON, so this tries, in order:
//  1. The whole text as-is.
//  2. The contents of the first fenced code block (```json ... ``` or
//     ``` ... ```), if present.
//  3. The substring between the first '{' and the last '}' in the text.
//
// Returns false if none of the attempts parse.
func extractJSONObject(text string, v interface{}) bool {
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}

	if fenced, ok := firstFencedBlock(text); ok {
		if json.Unmarshal([]byte(fenced), v) == nil {
			return true
		}
	}

	if start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); start >= 0 && end > start {
		if json.Unmarshal([]byte(text[start:end+1]), v) == nil {
			return true
		}
	}

	return false
}

// firstFencedBlock returns the contents of the first Markdown fenced code
// block in text, stripping an optional language tag on the opening fence.
func firstFencedBlock(text string) (string, bool) {
	const fence = "```"

	start := strings.Index(text, fence)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(fence):]

	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	block := rest[:end]

	if nl := strings.IndexByte(block, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(block[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{}[]\"") {
			block = block[nl+1:]
		}
	}

	return strings.TrimSpace(block), true
}

// estimateTokens approximates token count as chars/4, the tokenizer-free
// heuristic used to trigger context distillation.
func estimateTokens(s string) int {
	return len(s) / 4
}
