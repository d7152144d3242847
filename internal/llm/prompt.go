package llm

import "strings"

func systemPrompt(language string) string {
	if language == "cs" {
		return "Jsi klidný a přátelský moderátor krátkého osobního podcastu. " +
			"Mluvíš česky, tykáš posluchači a nepoužíváš odrážky, nadpisy ani emoji. " +
			"Text bude přečten nahlas, proto piš celé věty a časy vyslovuj přirozeně."
	}
	return "You are the calm, friendly host of a short personal podcast. " +
		"Speak English in the second person and use no bullet points, headings or emoji. " +
		"The text is read aloud, so write full sentences and say times naturally."
}

// userPrompt wraps the listing. Each listing line is
// "Day | time | title [| person]".
func userPrompt(listing, language string) string {
	var b strings.Builder
	if language == "cs" {
		b.WriteString("Shrň mi můj příští týden podle následujícího seznamu událostí. ")
		b.WriteString("Postupuj po dnech od pondělí do neděle, zmiň každou událost a u událostí se jménem řekni, kdo je naplánoval. ")
		b.WriteString("Buď stručný, nanejvýš pár vět na den.\n\n")
	} else {
		b.WriteString("Summarize my coming week from the event list below. ")
		b.WriteString("Go day by day from Monday to Sunday, mention every event and, where a name is given, who added it. ")
		b.WriteString("Keep it short, a few sentences per day at most.\n\n")
	}
	b.WriteString(strings.TrimSpace(listing))
	b.WriteString("\n")
	return b.String()
}
