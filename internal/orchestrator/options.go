package orchestrator

import (
	"fmt"
	"strings"
)

// DefaultAge is the learner age sent when a lesson request does not name one.
const DefaultAge = 25

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// ParseExperience resolves a case-insensitive experience level name.
func ParseExperience(raw string) (ExperienceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "beginner":
		return ExperienceBeginner, nil
	case "intermediate":
		return ExperienceIntermediate, nil
	case "advanced":
		return ExperienceAdvanced, nil
	}
	return "", fmt.Errorf("unknown experience level %q (want beginner, intermediate or advanced)", raw)
}

func (e ExperienceLevel) Valid() bool {
	switch e {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced:
		return true
	}
	return false
}

// PerformanceMode selects how much server-side work a lesson request asks for.
// The three modes are mutually exclusive.
type PerformanceMode string

const (
	ModeFull      PerformanceMode = "full"
	ModeQuick     PerformanceMode = "quick"
	ModeUltraFast PerformanceMode = "ultraFast"
)

// ParsePerformanceMode resolves a mode name. "ultra-fast", "ultra_fast" and
// "ultrafast" all name ModeUltraFast.
func ParsePerformanceMode(raw string) (PerformanceMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	switch normalized {
	case "full":
		return ModeFull, nil
	case "quick":
		return ModeQuick, nil
	case "ultrafast":
		return ModeUltraFast, nil
	}
	return "", fmt.Errorf("unknown performance mode %q (want full, quick or ultraFast)", raw)
}

func (m PerformanceMode) Valid() bool {
	switch m {
	case ModeFull, ModeQuick, ModeUltraFast:
		return true
	}
	return false
}

// Flags returns the quick_mode and ultra_fast request flags for m. Both are
// false for ModeFull.
func (m PerformanceMode) Flags() (quick bool, ultraFast bool) {
	return m == ModeQuick, m == ModeUltraFast
}

// RequestOptions tunes a lesson request. Zero fields fall back to the
// orchestrator defaults.
type RequestOptions struct {
	Age        int             `json:"age,omitempty"`
	Experience ExperienceLevel `json:"experience,omitempty"`
	Mode       PerformanceMode `json:"mode,omitempty"`
}

func DefaultOptions() RequestOptions {
	return RequestOptions{
		Age:        DefaultAge,
		Experience: ExperienceBeginner,
		Mode:       ModeFull,
	}
}

// resolve fills unset or invalid fields of o from base.
func (o RequestOptions) resolve(base RequestOptions) RequestOptions {
	resolved := o
	if resolved.Age <= 0 {
		resolved.Age = base.Age
	}
	if !resolved.Experience.Valid() {
		resolved.Experience = base.Experience
	}
	if !resolved.Mode.Valid() {
		resolved.Mode = base.Mode
	}
	return resolved
}
