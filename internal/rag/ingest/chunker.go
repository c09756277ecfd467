package ingest

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCodec is the encoding surface the chunker needs; *tiktoken.Tiktoken
// satisfies it.
type tokenCodec interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Chunk boundaries prefer natural breaks over mid-word splits; a chunk that
// still exceeds the token budget after splitting is hard-cut on token
// boundaries. Overlap carries trailing characters into the next chunk for
// semantic continuity.
type Chunker struct {
	enc     tokenCodec
	overlap int
}

func NewChunker(encodingName string, overlapChars int) (*Chunker, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return newChunkerWithCodec(enc, overlapChars), nil
}

func newChunkerWithCodec(codec tokenCodec, overlapChars int) *Chunker {
	return &Chunker{enc: codec, overlap: overlapChars}
}

type TextChunk struct {
	Text       string
	TokenCount int
}

// Split produces chunks whose token counts never exceed tokenBudget.
func (c *Chunker) Split(text string, tokenBudget int) []TextChunk {
	//roughly 4 chars per token keeps most chunks under budget on the
	//first pass; the token-level re-split below is the hard guarantee
	charLimit := tokenBudget * 4

	var out []TextChunk
	for _, piece := range splitTextIntoChunks(text, charLimit, c.overlap) {
		out = append(out, c.enforceBudget(piece, tokenBudget)...)
	}
	return out
}

func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *Chunker) enforceBudget(text string, tokenBudget int) []TextChunk {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= tokenBudget {
		return []TextChunk{{Text: text, TokenCount: len(tokens)}}
	}

	var out []TextChunk
	for start := 0; start < len(tokens); start += tokenBudget {
		end := start + tokenBudget
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		out = append(out, TextChunk{
			Text:       c.enc.Decode(window),
			TokenCount: len(window),
		})
	}
	return out
}

// splitTextIntoChunks splits on the best available separator, carrying an
// overlap tail between adjacent chunks.
func splitTextIntoChunks(text string, limit int, overlap int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	// Separators ordered from "best" to "worst" for semantic meaning
	separators := []string{"\n\n", "\n", ". ", " ", ""}

	var splitChar string
	found := false
	for _, s := range separators {
		if s != "" && strings.Contains(text, s) {
			splitChar = s
			found = true
			break
		}
	}

	if !found {
		// Hard cut if no separator exists at all
		var chunks []string
		for start := 0; start < len(text); start += limit {
			end := start + limit
			if end > len(text) {
				end = len(text)
			}
			chunks = append(chunks, text[start:end])
		}
		return chunks
	}

	parts := strings.Split(text, splitChar)
	var chunks []string
	var currentChunk strings.Builder

	for _, part := range parts {
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 && splitChar != "" {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}
