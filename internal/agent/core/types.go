package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/brieflab/models"
)

// Pipeline names one orchestrated workflow.
type Pipeline string

const (
	PipelineAnalysis Pipeline = "analysis"
	PipelineSummary  Pipeline = "summary"
	PipelineArticle  Pipeline = "linkedin"
	PipelineLearning Pipeline = "learning"
)

// Stage names one node of a pipeline state machine.
type Stage string

const (
	StageReconnaissance Stage = "reconnaissance"
	StageExtraction     Stage = "extraction"
	StageChallenge      Stage = "challenge"
	StageSynthesis      Stage = "synthesis"

	StageTakeaways    Stage = "takeaways"
	StageSections     Stage = "sections"
	StageExecutive    Stage = "executive"
	StageKeyTerms     Stage = "key_terms"
	StageLimitations  Stage = "limitations"
	StageLinkedInPost Stage = "linkedin_post"

	StageArticle Stage = "article"

	StagePlan          Stage = "plan"
	StageWriteChapter  Stage = "write_chapter"
	StageDesignChapter Stage = "design_chapter"
	StageCheckMore     Stage = "check_more"
	StageIntegrate     Stage = "integrate"

	StageDone Stage = "done"
)

// ModelClient performs one chat completion.
type ModelClient interface {
	Invoke(ctx context.Context, req models.ModelRequest) (string, error)
}

// ImageGenerator renders one illustration.
type ImageGenerator interface {
	Generate(ctx context.Context, req models.ImageRequest) (*models.GeneratedImage, error)
}

// ProgressFunc receives a human readable status line after every stage transition.
type ProgressFunc func(stage Stage, message string)

// StageConfig fixes the model parameters of one stage.
type StageConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// InputBudget caps, in characters, each piece of prior state interpolated into the prompt.
	InputBudget int
}

// Subject is the immutable input of the analysis and summary pipelines.
type Subject struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// SubjectFromContent adapts extracted content into a pipeline subject.
func SubjectFromContent(c models.Content) Subject {
	return Subject{Text: c.Text, Title: c.Title, Source: c.Source}
}

// EducationLevel parameterizes every prompt of the learning pipeline.
type EducationLevel string

const (
	LevelElementary    EducationLevel = "elementary"
	LevelMiddleSchool  EducationLevel = "middle_school"
	LevelHighSchool    EducationLevel = "high_school"
	LevelUndergraduate EducationLevel = "undergraduate"
	LevelExpert        EducationLevel = "expert"

	DefaultEducationLevel = LevelHighSchool
)

var levelAudience = map[EducationLevel]string{
	LevelElementary:    "an elementary school student (ages 6-10): very simple words, concrete everyday examples, no jargon",
	LevelMiddleSchool:  "a middle school student (ages 11-14): plain language, relatable analogies, define every new term",
	LevelHighSchool:    "a high school student (ages 14-18): clear explanations, some technical vocabulary with definitions",
	LevelUndergraduate: "an undergraduate student: precise terminology, underlying mechanisms, references to the wider field",
	LevelExpert:        "a domain expert: dense, technical, focused on nuance, edge cases and open problems",
}

// ParseEducationLevel accepts the canonical names case-insensitively.
// An empty value yields DefaultEducationLevel.
func ParseEducationLevel(s string) (EducationLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "" {
		return DefaultEducationLevel, nil
	}
	lvl := EducationLevel(s)
	if _, ok := levelAudience[lvl]; !ok {
		return "", fmt.Errorf("unknown education level %q", s)
	}
	return lvl, nil
}

// Audience describes the reader the level targets.
func (l EducationLevel) Audience() string {
	if a, ok := levelAudience[l]; ok {
		return a
	}
	return levelAudience[DefaultEducationLevel]
}

// KeyTerm is one glossary entry of a summary.
type KeyTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Context    string `json:"context,omitempty"`
}

// Section is one illustrated part of an executive summary.
type Section struct {
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"key_points"`
	VisualConcept string   `json:"visual_concept,omitempty"`
	ImagePrompt   string   `json:"image_prompt"`
}

// ArticlePoint is one insight of a LinkedIn article.
type ArticlePoint struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// LinkedInArticle is the long form social article of a linkedin report.
type LinkedInArticle struct {
	Headline      string         `json:"headline"`
	Introduction  string         `json:"introduction"`
	KeyPoints     []ArticlePoint `json:"key_points"`
	Conclusion    string         `json:"conclusion"`
	CallToAction  string         `json:"call_to_action"`
	VisualConcept string         `json:"visual_concept"`
}

// HeroPrompt is the image prompt of the article's single visual.
func (a LinkedInArticle) HeroPrompt(title string) string {
	if c := strings.TrimSpace(a.VisualConcept); c != "" {
		return c
	}
	return "Whimsical watercolor illustration of " + titleOrUntitled(title)
}

func titleOrUntitled(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return "Untitled"
}

// Chapter is one unit of a learning path.
type Chapter struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	ImagePrompt string `json:"image_prompt"`
	ImageURL    string `json:"image_url"`
}
