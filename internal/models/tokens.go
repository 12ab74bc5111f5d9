package models

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text for a model. Non-OpenAI
// models fall back to cl100k_base, which is close enough for budgeting.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}

	tk, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encOnce.Do(func() {
			enc, _ = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		})
		tk = enc
	}
	if tk == nil {
		// Encoder data unavailable: rough 4 bytes per token heuristic.
		return len(text) / 4
	}
	return len(tk.Encode(text, nil, nil))
}

// CountRequestTokens estimates the prompt token total for a request.
func CountRequestTokens(model string, req *ModelRequest) int {
	total := CountTokens(model, req.System)
	for _, m := range req.Messages {
		total += CountTokens(model, m.Content) + 4 // role/format overhead
	}
	return total
}
