package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/internal/planner"
)

// Every parser here returns a usable value. When the model output could not be
// interpreted the value is the documented default and the error is a
// *MalformedOutputError describing why.

// scorePattern tolerates markdown emphasis and brackets around "Score: X/10".
var scorePattern = regexp.MustCompile(`(?i)score\s*\**\s*:\s*\**\s*\[?\s*(\d{1,2})\s*/\s*10`)

// ParseConfidenceScore returns the first in range "Score: X/10" value of text,
// or NeutralConfidence and false when there is none.
func ParseConfidenceScore(text string) (int, bool) {
	for _, m := range scorePattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= 10 {
			return n, true
		}
	}
	return NeutralConfidence, false
}

// decodeDocument tries the whole response first, then each embedded {...}
// object in turn. A candidate must match the document schema to be accepted.
func decodeDocument(doc planner.Document, text string, v any) error {
	whole := helpers.UnwrapCodeFence(text)
	candidates := []string{whole}
	for _, obj := range helpers.JSONObjects(text) {
		if obj != whole {
			candidates = append(candidates, obj)
		}
	}
	var lastErr error
	for _, c := range candidates {
		if err := planner.Validate(doc, []byte(c)); err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Curriculum is the planner stage output.
type Curriculum struct {
	TopicDefinition string
	Chapters        []Chapter
}

// FallbackCurriculum is substituted whenever no plan can be parsed.
func FallbackCurriculum(topic string) Curriculum {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "the topic"
	}
	return Curriculum{
		TopicDefinition: fmt.Sprintf("An introduction to %s.", topic),
		Chapters: []Chapter{
			{Title: "Introduction", Description: "Overview of " + topic},
			{Title: "Key Concepts", Description: "Core details and mechanics"},
			{Title: "Conclusion", Description: "Summary and application"},
		},
	}
}

// ParseCurriculum extracts the chapter plan. Chapters with blank titles are
// dropped and at most maxChapters are kept (maxChapters <= 0 keeps all).
// The result is never empty.
func ParseCurriculum(text, topic string, maxChapters int) (Curriculum, error) {
	var doc struct {
		TopicDefinition string `json:"topic_definition"`
		Chapters        []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"chapters"`
	}
	if err := decodeDocument(planner.Curriculum, text, &doc); err != nil {
		return FallbackCurriculum(topic), &MalformedOutputError{Stage: StagePlan, Reason: err.Error()}
	}

	var out Curriculum
	for _, ch := range doc.Chapters {
		title := strings.TrimSpace(ch.Title)
		if title == "" {
			continue
		}
		out.Chapters = append(out.Chapters, Chapter{Title: title, Description: strings.TrimSpace(ch.Description)})
		if maxChapters > 0 && len(out.Chapters) == maxChapters {
			break
		}
	}
	if len(out.Chapters) == 0 {
		return FallbackCurriculum(topic), &MalformedOutputError{Stage: StagePlan, Reason: "no chapter with a title"}
	}
	out.TopicDefinition = strings.TrimSpace(doc.TopicDefinition)
	if out.TopicDefinition == "" {
		out.TopicDefinition = FallbackCurriculum(topic).TopicDefinition
	}
	return out, nil
}

var bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])\s+(.+)$`)

// bulletLines collects list items from free text.
func bulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(strings.Trim(m[1], "*_ "))
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// ParseTakeaways reads {"takeaways": [...]}, falling back to the bullet lines of text.
func ParseTakeaways(text string) ([]string, error) {
	var doc struct {
		Takeaways []string `json:"takeaways"`
	}
	if err := decodeDocument(planner.Takeaways, text, &doc); err != nil {
		return append([]string{}, bulletLines(text)...), &MalformedOutputError{Stage: StageTakeaways, Reason: err.Error()}
	}
	return nonEmpty(doc.Takeaways), nil
}

// ParseKeyTerms reads {"terms": [{"term","definition","context"}]}. Entries
// without a term or definition are dropped; unparsable output yields no terms.
func ParseKeyTerms(text string) ([]KeyTerm, error) {
	var doc struct {
		Terms []KeyTerm `json:"terms"`
	}
	if err := decodeDocument(planner.KeyTerms, text, &doc); err != nil {
		return []KeyTerm{}, &MalformedOutputError{Stage: StageKeyTerms, Reason: err.Error()}
	}
	out := make([]KeyTerm, 0, len(doc.Terms))
	for _, t := range doc.Terms {
		t.Term = strings.TrimSpace(t.Term)
		t.Definition = strings.TrimSpace(t.Definition)
		t.Context = strings.TrimSpace(t.Context)
		if t.Term == "" || t.Definition == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseLimitations reads {"limitations": [...], "biases": [...]}.
func ParseLimitations(text string) (limitations, biases []string, err error) {
	var doc struct {
		Limitations []string `json:"limitations"`
		Biases      []string `json:"biases"`
	}
	if derr := decodeDocument(planner.Limitations, text, &doc); derr != nil {
		return []string{}, []string{}, &MalformedOutputError{Stage: StageLimitations, Reason: derr.Error()}
	}
	return nonEmpty(doc.Limitations), nonEmpty(doc.Biases), nil
}

const (
	maxSections         = 8
	overviewImagePrompt = "Modern infographic showing data analysis and insights"
)

// FallbackSections is the single overview section used when no section list can be parsed.
func FallbackSections(text string) []Section {
	summary := helpers.Truncate(strings.TrimSpace(text), 500)
	if summary == "" {
		summary = "Summary unavailable"
	}
	return []Section{{
		Title:       "Overview",
		Summary:     summary,
		KeyPoints:   []string{"Content analysis complete"},
		ImagePrompt: overviewImagePrompt,
	}}
}

// ParseSections reads {"sections": [{"title","summary","key_points","visual_concept"}]}.
// Untitled sections are dropped and at most eight are kept; each kept section
// gets an image prompt built from its visual concept.
func ParseSections(text string) ([]Section, error) {
	var doc struct {
		Sections []Section `json:"sections"`
	}
	if err := decodeDocument(planner.Sections, text, &doc); err != nil {
		return FallbackSections(text), &MalformedOutputError{Stage: StageSections, Reason: err.Error()}
	}
	out := make([]Section, 0, len(doc.Sections))
	for _, sec := range doc.Sections {
		sec.Title = strings.TrimSpace(sec.Title)
		if sec.Title == "" {
			continue
		}
		sec.Summary = strings.TrimSpace(sec.Summary)
		sec.KeyPoints = nonEmpty(sec.KeyPoints)
		sec.VisualConcept = strings.TrimSpace(sec.VisualConcept)
		sec.ImagePrompt = SectionImagePrompt(sec.VisualConcept, sec.Title)
		out = append(out, sec)
		if len(out) == maxSections {
			break
		}
	}
	if len(out) == 0 {
		return FallbackSections(text), &MalformedOutputError{Stage: StageSections, Reason: "no section with a title"}
	}
	return out, nil
}

// SectionImagePrompt wraps a section's visual concept in the house watercolor style.
func SectionImagePrompt(concept, title string) string {
	if concept == "" {
		concept = "an abstract visual metaphor for " + title
	}
	return fmt.Sprintf("Whimsical watercolor illustration: %s. Dreamy watercolor painting style with soft flowing colors and artistic brush strokes. "+
		"Pastel color palette with gentle gradients, hand-painted aesthetic, organic shapes. Theme: %s. No text overlays.", concept, title)
}

// ParseExecutive reads {"executive_summary","detailed_analysis","recommendations"}.
// Recommendations are appended to the detailed analysis. When the output is not
// such a document the whole text is the executive summary.
func ParseExecutive(text string) (summary, detailed string, err error) {
	var doc struct {
		ExecutiveSummary string   `json:"executive_summary"`
		DetailedAnalysis string   `json:"detailed_analysis"`
		Recommendations  []string `json:"recommendations"`
	}
	if derr := decodeDocument(planner.Executive, text, &doc); derr != nil {
		return strings.TrimSpace(helpers.UnwrapCodeFence(text)), "", &MalformedOutputError{Stage: StageExecutive, Reason: derr.Error()}
	}
	detailed = strings.TrimSpace(doc.DetailedAnalysis)
	if recs := nonEmpty(doc.Recommendations); len(recs) > 0 {
		detailed = strings.TrimSpace(detailed + "\n\n**Recommendations:**\n\n" + bulletList(recs))
	}
	return strings.TrimSpace(doc.ExecutiveSummary), detailed, nil
}

// ParseLinkedInPost reads {"post_text"}, falling back to the first 1000
// characters of the raw response.
func ParseLinkedInPost(text string) (string, error) {
	var doc struct {
		PostText string `json:"post_text"`
	}
	if err := decodeDocument(planner.LinkedInPost, text, &doc); err != nil {
		post := helpers.Truncate(strings.TrimSpace(text), 1000)
		if post == "" {
			post = "Could not generate post."
		}
		return post, &MalformedOutputError{Stage: StageLinkedInPost, Reason: err.Error()}
	}
	return strings.TrimSpace(doc.PostText), nil
}

// FallbackArticle is substituted whenever no article can be parsed.
func FallbackArticle(title string) LinkedInArticle {
	return LinkedInArticle{
		Headline:      "Insights from " + titleOrUntitled(title),
		Introduction:  "Unable to generate structured article.",
		KeyPoints:     []ArticlePoint{},
		VisualConcept: "Abstract business concept in watercolor",
	}
}

// ParseArticle reads the linkedin article document. Key points without a
// title or detail are dropped.
func ParseArticle(text, title string) (LinkedInArticle, error) {
	var a LinkedInArticle
	if err := decodeDocument(planner.Article, text, &a); err != nil {
		return FallbackArticle(title), &MalformedOutputError{Stage: StageArticle, Reason: err.Error()}
	}
	points := make([]ArticlePoint, 0, len(a.KeyPoints))
	for _, p := range a.KeyPoints {
		p.Title, p.Detail = strings.TrimSpace(p.Title), strings.TrimSpace(p.Detail)
		if p.Title == "" || p.Detail == "" {
			continue
		}
		points = append(points, p)
	}
	a.KeyPoints = points
	a.Headline = strings.TrimSpace(a.Headline)
	a.Introduction = strings.TrimSpace(a.Introduction)
	a.Conclusion = strings.TrimSpace(a.Conclusion)
	a.CallToAction = strings.TrimSpace(a.CallToAction)
	a.VisualConcept = strings.TrimSpace(a.VisualConcept)
	return a, nil
}

// BuildInfographicPrompt renders the image prompt that visualizes an analysis run.
func BuildInfographicPrompt(title string, confidence int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Article"
	}
	return fmt.Sprintf(`Create a whimsical watercolor-style infographic summarizing critical analysis of an article.

ARTICLE ANALYZED: %[1]s
CONFIDENCE SCORE: %[2]d/10

The infographic should visualize:
1. SCOUT (magnifying glass icon): Source credibility, article type, red flags
2. EXTRACT (pickaxe icon): Core claim, 3 evidence points with quality ratings
3. CHALLENGE (devil icon): Bias detection, manipulation flags
4. SYNTHESIZE (ribbon icon): Source, Claim, Evidence and Reservations summary

VISUAL STYLE:
- Soft pastel watercolor washes with hand-drawn aesthetic
- Organic shapes flowing like a river or garden path
- Confidence score as a watercolor gauge showing %[2]d/10
- Evidence quality as flower blooms (filled=strong, outline=weak)
- Muted jewel tones: sage green, dusty rose, soft gold, sky blue, lavender`, title, confidence)
}
