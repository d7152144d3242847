package brief

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		words     int
		sentences int
		want      string
	}{
		{
			name:      "within limits",
			text:      "Monday 9am: Standup. Tuesday 2pm: Dentist.",
			words:     150,
			sentences: 4,
			want:      "Monday 9am: Standup. Tuesday 2pm: Dentist.",
		},
		{
			name:      "word cut backs up to last period",
			text:      "Monday 9am: Standup. Tuesday 2pm: Dentist with Dr Novak.",
			words:     6,
			sentences: 10,
			want:      "Monday 9am: Standup.",
		},
		{
			name:      "sentence cut re-appends period",
			text:      "One. Two. Three. Four. Five.",
			words:     100,
			sentences: 3,
			want:      "One. Two. Three.",
		},
		{
			name:      "word cut without any period is terminated",
			text:      "a b c d e f g h",
			words:     3,
			sentences: 4,
			want:      "a b c.",
		},
		{
			name:      "unterminated text gets a period",
			text:      "See you next week",
			words:     100,
			sentences: 4,
			want:      "See you next week.",
		},
		{
			name:      "exclamation is terminal",
			text:      "Big week!",
			words:     100,
			sentences: 4,
			want:      "Big week!",
		},
		{
			name:      "whitespace is collapsed only when cutting",
			text:      "  One.  Two.\nThree.  ",
			words:     100,
			sentences: 10,
			want:      "One.  Two.\nThree.",
		},
		{
			name:      "limits disabled",
			text:      "One. Two. Three.",
			words:     0,
			sentences: 0,
			want:      "One. Two. Three.",
		},
		{
			name: "empty",
			text: "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Truncate(tt.text, tt.words, tt.sentences))
		})
	}
}

func TestTruncateProperties(t *testing.T) {
	base := "Monday 9am: Standup. Tuesday all day: Conference in Prague with the whole team. Wednesday 2:30pm: Dentist. "
	text := strings.Repeat(base, 10)

	for words := 1; words <= 60; words += 3 {
		for sentences := 1; sentences <= 8; sentences++ {
			got := Truncate(text, words, sentences)
			require.LessOrEqual(t, len(strings.Fields(got)), words)
			require.LessOrEqual(t, len(strings.Split(got, ". ")), sentences)
			require.True(t, strings.HasSuffix(got, "."), "words=%d sentences=%d got=%q", words, sentences, got)
		}
	}
}

func TestClockFormats(t *testing.T) {
	day := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		h, m   int
		en, cs string
	}{
		{0, 0, "12am", "0:00"},
		{9, 0, "9am", "9:00"},
		{9, 5, "9:05am", "9:05"},
		{12, 0, "12pm", "12:00"},
		{14, 30, "2:30pm", "14:30"},
		{23, 59, "11:59pm", "23:59"},
	}
	for _, tt := range tests {
		ts := day.Add(time.Duration(tt.h)*time.Hour + time.Duration(tt.m)*time.Minute)
		require.Equal(t, tt.en, clock12h(ts))
		require.Equal(t, tt.cs, clock24h(ts))
	}
}
