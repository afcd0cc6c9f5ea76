package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/brianfdo/signlearner/internal/orchestrator"
)

func writeTranslation(w io.Writer, result *orchestrator.TranslationResult) error {
	if result == nil {
		return fmt.Errorf("no translation in state")
	}

	summary := result.Summary
	if _, err := fmt.Fprintf(w, "text: %s\nstrategy: %s\nvideos: %d/%d found\n",
		result.Text,
		summary.Strategy.Label(),
		summary.FoundVideos,
		summary.TotalVideos,
	); err != nil {
		return err
	}
	switch summary.Strategy {
	case orchestrator.StrategyASLPhrase, orchestrator.StrategyPhrase:
		if _, err := fmt.Fprintf(w, "phrase similarity: %.2f\n", summary.PhraseSimilarity); err != nil {
			return err
		}
	default:
		if _, err := fmt.Fprintf(w, "word average similarity: %.2f\n", summary.WordAvgSimilarity); err != nil {
			return err
		}
	}
	if enh := summary.Enhancement; enh != nil {
		if _, err := fmt.Fprintf(w, "enhancer: %s (confidence %.2f)\nbest variation: %s\n",
			enh.EnhancerType,
			enh.ConfidenceScore,
			enh.BestVariation,
		); err != nil {
			return err
		}
		if len(enh.GrammarRulesApplied) > 0 {
			if _, err := fmt.Fprintf(w, "grammar rules: %s\n", strings.Join(enh.GrammarRulesApplied, "; ")); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	return writeVideoTable(w, result.Videos, false)
}

func writeLesson(w io.Writer, result *orchestrator.LessonResult) error {
	if result == nil {
		return fmt.Errorf("no lesson in state")
	}

	header := []string{
		"topic: " + result.Topic,
		fmt.Sprintf("target age: %d", result.TargetAge),
		"experience: " + string(result.Experience),
		"difficulty: " + result.Difficulty,
		"estimated duration: " + result.EstimatedDuration.String(),
		fmt.Sprintf("vocabulary: %d words, %d videos found", result.TotalVocabulary, result.VideosFound),
	}
	if !result.GeneratedAt.IsZero() {
		header = append(header, "generated at: "+result.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, "\n")); err != nil {
		return err
	}

	sections := []struct {
		title string
		items []string
	}{
		{title: "Vocabulary", items: result.Vocabulary},
		{title: "Objectives", items: result.Objectives},
		{title: "Grammar focus", items: result.GrammarFocus},
		{title: "Practice activities", items: result.PracticeActivities},
	}
	for _, section := range sections {
		if err := writeBulletSection(w, section.title, section.items); err != nil {
			return err
		}
	}
	if notes := strings.TrimSpace(result.CulturalNotes); notes != "" {
		if err := writeBulletSection(w, "Cultural notes", strings.Split(notes, "\n")); err != nil {
			return err
		}
	}

	if len(result.Videos) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return writeVideoTable(w, result.Videos, true)
}

func writeBulletSection(w io.Writer, title string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n%s:\n", title); err != nil {
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintf(w, "  - %s\n", item); err != nil {
			return err
		}
	}
	return nil
}

func writeVideoTable(w io.Writer, videos []orchestrator.VideoRef, lesson bool) error {
	rows := make([][]string, 0, len(videos))
	for idx, video := range videos {
		step := idx + 1
		if lesson && video.Step > 0 {
			step = video.Step
		}
		embed := video.EmbedURL
		if !video.Found() {
			embed = "(no video)"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", step),
			truncateForTable(video.Word, 24),
			truncateForTable(video.Title, 48),
			video.DurationLabel(),
			fmt.Sprintf("%.2f", video.Similarity),
			embed,
		})
	}

	return writeTable(w,
		[]string{"step", "word", "title", "duration", "similarity", "embed_url"},
		rows,
	)
}
