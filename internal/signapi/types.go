package signapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TextToASLRequest is the body of POST /text-to-asl.
type TextToASLRequest struct {
	Text     string `json:"text"`
	FastMode bool   `json:"fast_mode"`
}

// LessonRequest is the body of POST /generate-lesson.
type LessonRequest struct {
	Prompt     string `json:"prompt"`
	Age        int    `json:"age"`
	Experience string `json:"experience"`
	QuickMode  bool   `json:"quick_mode"`
	UltraFast  bool   `json:"ultra_fast"`
}

// VideoEntry is one video reference as the server emits it. The server is not
// consistent about field names across endpoints and strategies, so alternates
// are kept side by side and resolved by the caller.
type VideoEntry struct {
	Word           *string `json:"word,omitempty"`
	Phrase         *string `json:"phrase,omitempty"`
	VocabularyWord *string `json:"vocabulary_word,omitempty"`
	Step           *int    `json:"step,omitempty"`
	VideoID        *string `json:"video_id,omitempty"`

	Title         *string `json:"title,omitempty"`
	VideoTitle    *string `json:"video_title,omitempty"`
	EnhancedTitle *string `json:"enhanced_title,omitempty"`

	EmbedURL *string `json:"embed_url,omitempty"`
	VideoURL *string `json:"video_url,omitempty"`
	URL      *string `json:"url,omitempty"`

	Duration        *float64 `json:"duration,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	Source          *string  `json:"source,omitempty"`
}

// ASLEnhancement reports how the server rewrote the query before searching.
type ASLEnhancement struct {
	EnhancerType        string   `json:"enhancer_type"`
	GrammarRulesApplied []string `json:"grammar_rules_applied"`
	VariationsTried     []string `json:"variations_tried"`
	BestVariation       string   `json:"best_variation"`
	ConfidenceScore     float64  `json:"confidence_score"`
}

// TextToASLResponse is the decoded body of POST /text-to-asl.
type TextToASLResponse struct {
	VideoSequence     []VideoEntry    `json:"video_sequence"`
	SearchStrategy    string          `json:"search_strategy,omitempty"`
	PhraseSimilarity  *float64        `json:"phrase_similarity,omitempty"`
	WordAvgSimilarity *float64        `json:"word_avg_similarity,omitempty"`
	ASLEnhancement    *ASLEnhancement `json:"asl_enhancement,omitempty"`
	FoundVideos       *int            `json:"found_videos,omitempty"`
	TotalVideos       *int            `json:"total_videos,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// LessonResponse is the decoded body of POST /generate-lesson.
type LessonResponse struct {
	LessonTopic        string       `json:"lesson_topic"`
	TargetAge          *int         `json:"target_age,omitempty"`
	ExperienceLevel    *string      `json:"experience_level,omitempty"`
	VocabularyWords    []string     `json:"vocabulary_words"`
	LessonObjectives   []string     `json:"lesson_objectives,omitempty"`
	GrammarFocus       []string     `json:"grammar_focus,omitempty"`
	PracticeActivities []string     `json:"practice_activities,omitempty"`
	CulturalNotes      TextOrList   `json:"cultural_notes,omitempty"`
	DifficultyLevel    string       `json:"difficulty_level,omitempty"`
	EstimatedDuration  *StringOrNum `json:"estimated_duration,omitempty"`
	LessonVideos       []VideoEntry `json:"lesson_videos"`
	TotalVocabulary    *int         `json:"total_vocabulary,omitempty"`
	VideosFound        *int         `json:"videos_found,omitempty"`
	GeneratedAt        string       `json:"generated_at,omitempty"`
	LangchainUsed      bool         `json:"langchain_used,omitempty"`
	Error              string       `json:"error,omitempty"`
}

// TextOrList holds a field the server sends either as one string or as a list
// of strings.
type TextOrList []string

func (t *TextOrList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*t = nil
			return nil
		}
		*t = TextOrList{s}
		return nil
	}
	var items []string
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*t = items
	return nil
}

// StringOrNum holds a field the server sends either as free text or as a number.
type StringOrNum struct {
	Text   string
	Number *float64
}

func (s *StringOrNum) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = StringOrNum{}
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = StringOrNum{Text: text}
		return nil
	}
	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = StringOrNum{Number: &n}
	return nil
}

func (s StringOrNum) MarshalJSON() ([]byte, error) {
	if s.Number != nil {
		return json.Marshal(*s.Number)
	}
	return json.Marshal(s.Text)
}

type errorPayload struct {
	Message string `json:"message"`
}

type welcomeResponse struct {
	Message string `json:"message"`
}
