package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenizerCache   = make(map[string]*tiktoken.Tiktoken)
	tokenizerCacheMu sync.Mutex
)

// getTokenizer returns a cached encoder for model, falling back to cl100k_base
// for models tiktoken does not know (including every Gemini model).
func getTokenizer(model string) (*tiktoken.Tiktoken, error) {
	tokenizerCacheMu.Lock()
	defer tokenizerCacheMu.Unlock()

	if tkm, ok := tokenizerCache[model]; ok {
		return tkm, nil
	}

	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	tokenizerCache[model] = tkm
	return tkm, nil
}

// EstimateTokens counts the tokens text would use. Counts for Gemini models
// are approximate.
func EstimateTokens(text, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tkm, err := getTokenizer(model)
	if err != nil {
		return 0, err
	}
	return len(tkm.Encode(text, nil, nil)), nil
}

// RoughTokens is the offline fallback used when no encoding can be loaded.
func RoughTokens(text string) int {
	const charsPerToken = 4
	return (len(text) + charsPerToken - 1) / charsPerToken
}
