package pump

import "unicode"

// splitChunks breaks delta text into display chunks: one code point at a
// time when the text contains CJK-range characters, else size-rune runs
// (chosen empirically for Latin-script readability).
func splitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)

	if containsCJK(runes) {
		chunks := make([]string, 0, len(runes))
		for _, r := range runes {
			chunks = append(chunks, string(r))
		}
		return chunks
	}

	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func containsCJK(runes []rune) bool {
	for _, r := range runes {
		if unicode.Is(unicode.Han, r) ||
			unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) ||
			unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
