package brief

import "strings"

// Truncate bounds narration text.
//
//   - If the text has more than maxWords whitespace-separated words, it is
//     cut to maxWords and then back to the last '.', so it never stops
//     mid-sentence.
//   - If the result has more than maxSentences ". "-separated sentences,
//     only the first maxSentences are kept and a final '.' re-appended.
//   - Non-empty output always ends with '.', '!' or '?'.
//
// Limits <= 0 disable the respective bound.
func Truncate(text string, maxWords, maxSentences int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if maxWords > 0 {
		words := strings.Fields(text)
		if len(words) > maxWords {
			text = strings.Join(words[:maxWords], " ")
			if i := strings.LastIndex(text, "."); i > 0 {
				text = text[:i+1]
			}
		}
	}

	if maxSentences > 0 {
		var sentences []string
		for _, s := range strings.Split(text, ". ") {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
		if len(sentences) > maxSentences {
			text = strings.Join(sentences[:maxSentences], ". ") + "."
		}
	}

	return terminate(text)
}

func terminate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}
