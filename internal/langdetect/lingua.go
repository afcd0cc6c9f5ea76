package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest input, in letters, worth classifying. Sign
// requests are often one or two words, which lingua cannot place reliably.
const minLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// candidates are the languages users most often type into the search box.
var candidates = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Russian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Arabic,
	lingua.Hindi,
}

// DetectISO6391 returns the ISO 639-1 code of text, or "" when the text is
// too short or the language cannot be determined.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidates...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}
