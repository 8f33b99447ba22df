package services

import (
	"regexp"
	"strings"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// ParagraphChunks splits text on blank-line boundaries, trims each piece and
// keeps those longer than minLen characters. No overlap between chunks.
func ParagraphChunks(text string, minLen int) []string {
	var chunks []string
	for _, part := range paragraphSplit.Split(text, -1) {
		part = strings.TrimSpace(part)
		if len(part) > minLen {
			chunks = append(chunks, part)
		}
	}
	return chunks
}

// ParagraphChunksBounded keeps only trimmed pieces whose length falls inside
// (minLen, maxLen), dropping fragments and oversized blobs.
func ParagraphChunksBounded(text string, minLen, maxLen int) []string {
	var chunks []string
	for _, part := range paragraphSplit.Split(text, -1) {
		part = strings.TrimSpace(part)
		if len(part) > minLen && len(part) < maxLen {
			chunks = append(chunks, part)
		}
	}
	return chunks
}

// WindowChunks slides a size-character window across text, emitting the
// trimmed window unless empty and advancing by size-overlap so consecutive
// chunks share overlapping context. Requires size > overlap >= 0; windows
// near the end may be shorter than size.
func WindowChunks(text string, size, overlap int) []string {
	if text == "" || size <= 0 || overlap < 0 || size <= overlap {
		return nil
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(text) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
