package orchestrator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/brianfdo/signlearner/internal/signapi"
)

// Strategy is the method the server used to satisfy a translation.
type Strategy string

const (
	StrategyASLPhrase Strategy = "asl_phrase"
	StrategyPhrase    Strategy = "phrase"
	StrategyWords     Strategy = "words"
)

func (s Strategy) Label() string {
	switch s {
	case StrategyASLPhrase:
		return "AI-enhanced phrase match"
	case StrategyPhrase:
		return "Phrase match"
	case StrategyWords:
		return "Word-by-word match"
	case "":
		return "Unknown"
	}
	return string(s)
}

// VideoRef is one sign video in presentation order. Step and VocabularyWord
// are only set for lesson videos.
type VideoRef struct {
	Word            string  `json:"word"`
	Title           string  `json:"title"`
	EmbedURL        string  `json:"embed_url,omitempty"`
	URL             string  `json:"url,omitempty"`
	VideoID         string  `json:"video_id,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Similarity      float64 `json:"similarity"`
	Source          string  `json:"source,omitempty"`
	Step            int     `json:"step,omitempty"`
	VocabularyWord  string  `json:"vocabulary_word,omitempty"`
}

// Found reports whether the server matched a playable video.
func (v VideoRef) Found() bool {
	return v.EmbedURL != ""
}

// DurationLabel renders the video length as m:ss.
func (v VideoRef) DurationLabel() string {
	total := int(math.Round(v.DurationSeconds))
	if total <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

type EnhancementInfo struct {
	EnhancerType        string   `json:"enhancer_type"`
	GrammarRulesApplied []string `json:"grammar_rules_applied"`
	VariationsTried     []string `json:"variations_tried"`
	BestVariation       string   `json:"best_variation"`
	ConfidenceScore     float64  `json:"confidence_score"`
}

type SearchSummary struct {
	Strategy          Strategy         `json:"strategy"`
	PhraseSimilarity  float64          `json:"phrase_similarity"`
	WordAvgSimilarity float64          `json:"word_avg_similarity"`
	Enhancement       *EnhancementInfo `json:"enhancement,omitempty"`
	FoundVideos       int              `json:"found_videos"`
	TotalVideos       int              `json:"total_videos"`
}

type TranslationResult struct {
	Text    string        `json:"text"`
	Videos  []VideoRef    `json:"videos"`
	Summary SearchSummary `json:"summary"`
}

// EstimatedDuration holds a lesson length the server sends either as free
// text or as a number of minutes. String renders both forms the same way.
type EstimatedDuration struct {
	Text    string  `json:"-"`
	Minutes float64 `json:"-"`
	Numeric bool    `json:"-"`
}

func (d EstimatedDuration) String() string {
	if d.Numeric {
		return formatMinutes(d.Minutes)
	}
	text := strings.TrimSpace(d.Text)
	if minutes, err := strconv.ParseFloat(text, 64); err == nil {
		return formatMinutes(minutes)
	}
	return text
}

func (d EstimatedDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *EstimatedDuration) UnmarshalJSON(data []byte) error {
	var raw signapi.StringOrNum
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	if raw.Number != nil {
		*d = EstimatedDuration{Minutes: *raw.Number, Numeric: true}
		return nil
	}
	*d = EstimatedDuration{Text: raw.Text}
	return nil
}

func formatMinutes(minutes float64) string {
	if minutes == 1 {
		return "1 minute"
	}
	return strconv.FormatFloat(minutes, 'f', -1, 64) + " minutes"
}

type LessonResult struct {
	Topic              string            `json:"topic"`
	TargetAge          int               `json:"target_age"`
	Experience         ExperienceLevel   `json:"experience"`
	Vocabulary         []string          `json:"vocabulary"`
	Objectives         []string          `json:"objectives"`
	GrammarFocus       []string          `json:"grammar_focus"`
	PracticeActivities []string          `json:"practice_activities"`
	CulturalNotes      string            `json:"cultural_notes"`
	Difficulty         string            `json:"difficulty"`
	EstimatedDuration  EstimatedDuration `json:"estimated_duration"`
	Videos             []VideoRef        `json:"videos"`
	TotalVocabulary    int               `json:"total_vocabulary"`
	VideosFound        int               `json:"videos_found"`
	GeneratedAt        time.Time         `json:"generated_at"`
	GeneratedAtRaw     string            `json:"generated_at_raw,omitempty"`
	AdvancedPipeline   bool              `json:"advanced_pipeline"`
}

func newTranslationResult(text string, resp *signapi.TextToASLResponse) (*TranslationResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty text-to-asl response", signapi.ErrDecode)
	}

	strategy := Strategy(strings.TrimSpace(resp.SearchStrategy))
	videos := make([]VideoRef, 0, len(resp.VideoSequence))
	found := 0
	for _, entry := range resp.VideoSequence {
		ref := videoRefFromEntry(entry)
		if ref.Source == "" {
			ref.Source = string(strategy)
		}
		if ref.Found() {
			found++
		}
		videos = append(videos, ref)
	}

	summary := SearchSummary{
		Strategy:          strategy,
		PhraseSimilarity:  derefFloat(resp.PhraseSimilarity),
		WordAvgSimilarity: derefFloat(resp.WordAvgSimilarity),
		FoundVideos:       derefInt(resp.FoundVideos, found),
		TotalVideos:       derefInt(resp.TotalVideos, len(videos)),
	}
	if enh := resp.ASLEnhancement; enh != nil {
		summary.Enhancement = &EnhancementInfo{
			EnhancerType:        enh.EnhancerType,
			GrammarRulesApplied: nonNilStrings(enh.GrammarRulesApplied),
			VariationsTried:     nonNilStrings(enh.VariationsTried),
			BestVariation:       enh.BestVariation,
			ConfidenceScore:     enh.ConfidenceScore,
		}
	}

	return &TranslationResult{
		Text:    text,
		Videos:  videos,
		Summary: summary,
	}, nil
}

func newLessonResult(req RequestOptions, resp *signapi.LessonResponse) (*LessonResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty generate-lesson response", signapi.ErrDecode)
	}

	videos := make([]VideoRef, 0, len(resp.LessonVideos))
	found := 0
	for idx, entry := range resp.LessonVideos {
		ref := videoRefFromEntry(entry)
		ref.Step = idx + 1
		if entry.Step != nil && *entry.Step > 0 {
			ref.Step = *entry.Step
		}
		ref.VocabularyWord = firstNonEmpty(entry.VocabularyWord, entry.Word, entry.Phrase)
		if ref.Found() {
			found++
		}
		videos = append(videos, ref)
	}

	experience := req.Experience
	if resp.ExperienceLevel != nil {
		if parsed, err := ParseExperience(*resp.ExperienceLevel); err == nil {
			experience = parsed
		}
	}
	age := req.Age
	if resp.TargetAge != nil && *resp.TargetAge > 0 {
		age = *resp.TargetAge
	}

	vocabulary := nonNilStrings(resp.VocabularyWords)
	result := &LessonResult{
		Topic:              strings.TrimSpace(resp.LessonTopic),
		TargetAge:          age,
		Experience:         experience,
		Vocabulary:         vocabulary,
		Objectives:         nonNilStrings(resp.LessonObjectives),
		GrammarFocus:       nonNilStrings(resp.GrammarFocus),
		PracticeActivities: nonNilStrings(resp.PracticeActivities),
		CulturalNotes:      strings.Join(resp.CulturalNotes, "\n"),
		Difficulty:         strings.TrimSpace(resp.DifficultyLevel),
		Videos:             videos,
		TotalVocabulary:    derefInt(resp.TotalVocabulary, len(vocabulary)),
		VideosFound:        derefInt(resp.VideosFound, found),
		AdvancedPipeline:   resp.LangchainUsed,
	}
	if d := resp.EstimatedDuration; d != nil {
		if d.Number != nil {
			result.EstimatedDuration = EstimatedDuration{Minutes: *d.Number, Numeric: true}
		} else {
			result.EstimatedDuration = EstimatedDuration{Text: d.Text}
		}
	}
	if raw := strings.TrimSpace(resp.GeneratedAt); raw != "" {
		if ts, ok := parseTimestamp(raw); ok {
			result.GeneratedAt = ts
		} else {
			result.GeneratedAtRaw = raw
		}
	}
	return result, nil
}

func videoRefFromEntry(entry signapi.VideoEntry) VideoRef {
	ref := VideoRef{
		Word:            firstNonEmpty(entry.Word, entry.Phrase, entry.VocabularyWord),
		Title:           firstNonEmpty(entry.Title, entry.VideoTitle, entry.EnhancedTitle),
		URL:             firstNonEmpty(entry.URL),
		VideoID:         firstNonEmpty(entry.VideoID),
		DurationSeconds: derefFloat(entry.Duration),
		Similarity:      derefFloat(entry.SimilarityScore),
		Source:          firstNonEmpty(entry.Source),
	}
	ref.EmbedURL = firstNonEmpty(entry.EmbedURL, entry.VideoURL)
	if ref.EmbedURL == "" && ref.URL != "" {
		ref.EmbedURL = embedURLFromWatch(ref.URL)
	}
	return ref
}

// embedURLFromWatch rewrites a YouTube watch URL into its embeddable form.
func embedURLFromWatch(raw string) string {
	if !strings.Contains(raw, "watch?v=") {
		return ""
	}
	return strings.Replace(raw, "watch?v=", "embed/", 1)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v == nil {
			continue
		}
		if trimmed := strings.TrimSpace(*v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
