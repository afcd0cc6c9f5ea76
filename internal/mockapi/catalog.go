package mockapi

import (
	"fmt"
	"strings"
	"unicode"
)

type catalogVideo struct {
	VideoID  string
	Title    string
	Duration float64
}

func (v catalogVideo) watchURL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

func (v catalogVideo) embedURL() string {
	return "https://www.youtube.com/embed/" + v.VideoID
}

// catalog maps a lower-case word or phrase to its sign video.
var catalog = map[string]catalogVideo{
	"hello":     {VideoID: "FVjpLa8GqeM", Title: "HELLO in ASL", Duration: 12},
	"thank you": {VideoID: "IvRwNLNR4_w", Title: "THANK YOU in ASL", Duration: 9},
	"yes":       {VideoID: "0usayvOXzHo", Title: "YES in ASL", Duration: 7},
	"no":        {VideoID: "QJXKaOSyl4o", Title: "NO in ASL", Duration: 8},
}

// failWord makes either endpoint answer with a structured 500.
const failWord = "fail"

type topicVocabulary struct {
	keywords []string
	words    []string
}

var topicVocabularies = []topicVocabulary{
	{keywords: []string{"family"}, words: []string{"mother", "father", "sister", "brother", "grandmother", "grandfather"}},
	{keywords: []string{"food", "eat", "hungry"}, words: []string{"eat", "food", "hungry", "thirsty", "water", "bread", "milk"}},
	{keywords: []string{"color"}, words: []string{"red", "blue", "green", "yellow", "black", "white", "pink"}},
	{keywords: []string{"number", "count"}, words: []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}},
	{keywords: []string{"greeting", "hello"}, words: []string{"hello", "goodbye", "thank you", "please", "sorry", "excuse me"}},
}

var genericVocabulary = []string{"hello", "thank you", "please", "more", "help", "family"}

func vocabularyFor(topic string) []string {
	lower := strings.ToLower(topic)
	for _, tv := range topicVocabularies {
		for _, keyword := range tv.keywords {
			if strings.Contains(lower, keyword) {
				return append([]string(nil), tv.words...)
			}
		}
	}
	return append([]string(nil), genericVocabulary...)
}

type lessonStructure struct {
	Objectives         []string
	GrammarFocus       []string
	PracticeActivities []string
	CulturalNotes      []string
	Difficulty         string
	EstimatedDuration  string
}

func structureFor(topic string) lessonStructure {
	return lessonStructure{
		Objectives: []string{
			fmt.Sprintf("Learn ASL vocabulary related to %s", topic),
			"Practice basic ASL grammar and structure",
			"Develop signing confidence through practice",
		},
		GrammarFocus: []string{
			"Basic ASL sentence structure",
			"Facial expressions in ASL",
			"Non-manual markers",
		},
		PracticeActivities: []string{
			"Watch and repeat vocabulary videos",
			"Practice signing with a partner",
			"Create simple sentences using new vocabulary",
		},
		CulturalNotes: []string{
			"ASL is a complete, natural language",
			"Deaf culture values visual communication",
			"Facial expressions are grammatical in ASL",
		},
		Difficulty:        "beginner",
		EstimatedDuration: "30 minutes",
	}
}

// tokenize lower-cases text, strips punctuation and joins two-word catalog
// phrases such as "thank you" into one token.
func tokenize(text string) []string {
	raw := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}

	tokens := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			pair := words[i] + " " + words[i+1]
			if _, ok := catalog[pair]; ok {
				tokens = append(tokens, pair)
				i++
				continue
			}
		}
		tokens = append(tokens, words[i])
	}
	return tokens
}

func containsFailWord(text string) bool {
	for _, token := range tokenize(text) {
		if token == failWord {
			return true
		}
	}
	return false
}
