package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	tk     *tiktoken.Tiktoken
	tkErr  error
	tkOnce sync.Once
)

func getTokenizer() (*tiktoken.Tiktoken, error) {
	tkOnce.Do(func() {
		tk, tkErr = tiktoken.GetEncoding(encodingName)
	})
	return tk, tkErr
}

// Count returns the cl100k token count of text. When the encoding cannot be
// loaded (offline, no cached BPE file) it falls back to a rune based estimate.
func Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := getTokenizer()
	if err != nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate is the offline approximation: one token per four runes, rounded up.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Window groups items into consecutive windows whose summed token count stays
// within budget. An item larger than the budget gets a window of its own.
func Window[T any](items []T, budget int, text func(T) string) [][]T {
	if len(items) == 0 {
		return nil
	}

	var windows [][]T
	var current []T
	used := 0

	for _, it := range items {
		n := Count(text(it))
		if len(current) > 0 && used+n > budget {
			windows = append(windows, current)
			current = nil
			used = 0
		}
		current = append(current, it)
		used += n
	}

	if len(current) > 0 {
		windows = append(windows, current)
	}
	return windows
}
