package core

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
)

const noThinking = "Output the result directly. Do not include any thinking or reasoning tokens."

const reconSystemPrompt = `You are a Reconnaissance Scanner. Perform a rapid orientation pass on an article before deep analysis begins.

Extract ONLY these elements:

**Source Profile:** publication and type, author, date (flag if older than 6 months), URL credibility signals.
**Structural Skeleton:** headline, subheadings, opening thesis in one sentence, closing position in one sentence.
**Visual/Emphasis Signals:** pull quotes, images or graphics, emphasized phrases.
**Initial Intent Assessment:** article type (news, opinion, analysis, advocacy, sponsored), apparent purpose, target audience.
**Red Flags:** clickbait headline, emotional language, missing date, anonymous author and similar concerns.

Be concise but thorough. ` + noThinking

const extractionSystemPrompt = `You are an Extraction Engine. Map the complete argument structure of an article, using the reconnaissance scan as orientation.

**Core Claim:** the single central argument in one sentence.
**Argument Structure:** up to 5 supporting points, each with the evidence provided and its quality (primary source, secondary source, anecdotal, unsourced assertion).
**Sources Cited:** a markdown table of source, type, how it is used and whether it is verifiable.
**Assumptions (Unstated):** what the author takes for granted and where logic leaps from evidence to conclusion.
**Counterarguments:** which opposing views are addressed, how fairly, and which obvious objections are ignored.
**Stakes & Implications:** explicit and implicit.
**Emotional Techniques:** appeals to fear, outrage, tribalism or urgency, and loaded framing.

Be thorough and objective. ` + noThinking

const challengeSystemPrompt = `You are a Type 2 Challenger. Apply slow, deliberate, critical thinking to an article that has already been scanned and extracted. Your job is to stress-test, not to debunk.

**Steelman Opposition:** the strongest 2-3 sentence argument against the thesis.
**Disconfirmation Test:** what evidence would prove the article wrong, whether it exists, whether the author addressed it.
**Bias Detection:** source and author bias, who benefits, and the reader biases the piece triggers (confirmation, availability, authority, anchoring).
**Missing Perspectives:** who is not represented and which alternative explanations are ignored.
**Manipulation Check:** a markdown table of technique, present (yes/no) and example, covering false urgency, fear appeal, tribal signaling, cherry-picked data, anecdote over data, strawman and emotion over logic.
**Confidence Calibration:** how confident a careful reader should be in the central claim, on exactly one line formatted as "Score: X/10", followed by 2-3 sentences of reasoning.
**What Would Change Your Mind:** the single piece of evidence that should make a believer reconsider.

Be rigorous but fair. ` + noThinking

const synthesisSystemPrompt = `You are a Synthesis Composer. Combine the reconnaissance scan, the extraction analysis and the critical challenge into one final summary that is concise, comprehensive, balanced and actionable.

Use these markdown sections:
### Article Overview (title, source, author, date, type)
### Core Claim
### Evidence Summary (strongest and weakest evidence)
### Critical Assessment (what it gets right, what it overstates, what is missing)
### Reader Awareness Notes (who it appeals to, warning signs, confidence rating with one sentence of justification)
### SCER Summary (Source, Claim, Evidence, Reservations as a blockquote)
### Suggested Verification Steps (3 numbered steps)

Output only the final summary. ` + noThinking

func reconPrompt(s Subject, budget int) string {
	return fmt.Sprintf(`ARTICLE TITLE: %s
ARTICLE URL: %s

ARTICLE TO SCAN:
%s`, s.Title, s.Source, helpers.Truncate(s.Text, budget))
}

func extractionPrompt(st AnalysisState, budget int) string {
	return fmt.Sprintf(`RECONNAISSANCE SCAN:
%s

ARTICLE TO ANALYZE:
%s`, st.ReconResult, helpers.Truncate(st.Subject.Text, budget))
}

func challengePrompt(st AnalysisState, budget int) string {
	return fmt.Sprintf(`RECONNAISSANCE SCAN:
%s

EXTRACTION ANALYSIS:
%s

ARTICLE:
%s`, st.ReconResult, st.ExtractionResult, helpers.Truncate(st.Subject.Text, budget))
}

func synthesisPrompt(st AnalysisState, budget int) string {
	return fmt.Sprintf(`RECONNAISSANCE SCAN:
%s

EXTRACTION ANALYSIS:
%s

TYPE 2 CHALLENGE:
%s

ARTICLE TITLE: %s
CONFIDENCE SCORE: %d/10

Compose the final synthesis summary.`,
		helpers.Truncate(st.ReconResult, budget),
		helpers.Truncate(st.ExtractionResult, budget),
		helpers.Truncate(st.ChallengeResult, budget),
		st.Subject.Title, st.ConfidenceScore)
}

const takeawaysSystemPrompt = `You distill content into its most important insights. Return ONLY a JSON object of the form {"takeaways": ["...", "..."]} holding 5-7 concise, actionable takeaways. ` + noThinking

const sectionsSystemPrompt = `You break content into illustrated sections. Return ONLY a JSON object of the form {"sections": [{"title": "...", "summary": "...", "key_points": ["..."], "visual_concept": "..."}]}. For each section write a clear descriptive title, a 2-3 sentence summary and 2-3 key points, and describe a specific visual concept for an infographic of its main idea (imagery, metaphors, visual elements). ` + noThinking

const executiveSystemPrompt = `You write executive summaries for busy decision makers. Return ONLY a JSON object of the form {"executive_summary": "...", "detailed_analysis": "...", "recommendations": ["..."]}. The executive summary is 3-4 paragraphs of markdown capturing the essence, main arguments and significance; the detailed analysis is 4-6 paragraphs of deeper insights, implications and context; give 3-5 actionable recommendations. ` + noThinking

const linkedInPostSystemPrompt = `You write viral, professional LinkedIn posts for thought leaders. Return ONLY a JSON object of the form {"post_text": "..."}. Open with a provocative hook, explain why this matters in short paragraphs, list the key takeaways as bullets, end with a question that invites comments and 3-5 hashtags. Aim for 150-200 words of plain text ready to paste. ` + noThinking

const articleSystemPrompt = `You write high-impact LinkedIn articles for senior executives and industry leaders. Return ONLY a JSON object of the form {"headline": "...", "introduction": "...", "key_points": [{"title": "...", "detail": "..."}], "conclusion": "...", "call_to_action": "...", "visual_concept": "..."}. Give a catchy headline, an introduction with hook, context and thesis, 3-5 deep insights each with a 3-4 sentence detail, a synthesizing conclusion and an engagement prompt. The visual concept describes one unified, symbolic visual metaphor for all key points, to be painted as a whimsical watercolor. ` + noThinking

const keyTermsSystemPrompt = `You build glossaries. Return ONLY a JSON object of the form {"terms": [{"term": "...", "definition": "...", "context": "..."}]} with 5-10 technical terms, acronyms or central concepts from the content. Definitions are 1-2 sentences a general business audience understands; context says how the term is used in this content. ` + noThinking

const limitationsSystemPrompt = `You are a critical reviewer applying slow, deliberate thinking. Return ONLY a JSON object of the form {"limitations": ["..."], "biases": ["..."]}. Limitations cover methodology, data quality, generalizability and missing perspectives. Each bias names the cognitive bias, how it shows in the content and its impact on the conclusions. ` + noThinking

func takeawaysPrompt(s Subject, budget int) string {
	return fmt.Sprintf(`CONTENT TITLE: %s

CONTENT:
%s

Extract the most critical insights, findings or lessons from this content.`, s.Title, helpers.Truncate(s.Text, budget))
}

// sectionTitles name the equal word chunks content is split into for the sections stage.
var sectionTitles = []string{"Overview", "Key Concepts", "Analysis", "Conclusions"}

// splitSections cuts text into len(sectionTitles) chunks of roughly equal word count.
func splitSections(text string) []Section {
	words := strings.Fields(text)
	size := len(words) / len(sectionTitles)
	out := make([]Section, len(sectionTitles))
	for i, title := range sectionTitles {
		start, end := i*size, (i+1)*size
		if i == len(sectionTitles)-1 {
			end = len(words)
		}
		out[i] = Section{Title: title, Summary: strings.Join(words[start:end], " ")}
	}
	return out
}

func sectionsPrompt(st SummaryState, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DOCUMENT TITLE: %s\n\nKEY THEMES: %s\n\nSECTIONS:\n", st.Subject.Title, strings.Join(firstN(st.Takeaways, 3), ", "))
	for _, sec := range splitSections(st.Subject.Text) {
		fmt.Fprintf(&b, "\nSECTION: %s\n%s\n", sec.Title, helpers.Truncate(sec.Summary, budget))
	}
	return b.String()
}

func executivePrompt(st SummaryState, budget int) string {
	var overview strings.Builder
	for _, sec := range firstN(st.Sections, 6) {
		fmt.Fprintf(&overview, "- %s: %s\n", sec.Title, helpers.Truncate(sec.Summary, 150))
	}
	return fmt.Sprintf(`CONTENT TITLE: %s

KEY TAKEAWAYS:
%s

SECTIONS OVERVIEW:
%s
ORIGINAL CONTENT PREVIEW:
%s`, st.Subject.Title, bulletList(st.Takeaways), overview.String(), helpers.Truncate(st.Subject.Text, budget))
}

func keyTermsPrompt(s Subject, budget int) string {
	return fmt.Sprintf(`CONTENT TITLE: %s

CONTENT:
%s`, s.Title, helpers.Truncate(s.Text, budget))
}

func limitationsPrompt(st SummaryState, budget int) string {
	return fmt.Sprintf(`CONTENT TITLE: %s

EXECUTIVE SUMMARY:
%s

DETAILED ANALYSIS:
%s

ORIGINAL CONTENT PREVIEW:
%s`, st.Subject.Title, helpers.Truncate(st.ExecutiveSummary, 1000), helpers.Truncate(st.DetailedAnalysis, 1500), helpers.Truncate(st.Subject.Text, budget))
}

func linkedInPostPrompt(st SummaryState, budget int) string {
	return fmt.Sprintf(`CONTENT TITLE: %s

SUMMARY:
%s

KEY TAKEAWAYS:
%s`, st.Subject.Title, helpers.Truncate(st.ExecutiveSummary, budget), bulletList(firstN(st.Takeaways, 3)))
}

func articlePrompt(s Subject, budget int) string {
	return fmt.Sprintf(`CONTENT TITLE: %s

CONTENT:
%s`, s.Title, helpers.Truncate(s.Text, budget))
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func planSystemPrompt(level EducationLevel, maxChapters int) string {
	return fmt.Sprintf(`You are an expert curriculum designer specializing in Dyslexia and ADHD friendly learning.
The learner is %s.

Create a short, structured curriculum of 3 to %d chapters for the topic provided:
1. Preview (the big idea)
2. Core mechanics (how it works, the details)
3. Application or summary (why it matters, review)

Return ONLY a JSON object with this structure:
{
  "topic_definition": "One or two sentences defining the topic for this learner",
  "chapters": [
    {"title": "Chapter title", "description": "Brief description of what this chapter covers"}
  ]
}`, level.Audience(), maxChapters)
}

func planPrompt(topic string) string {
	return "Create a curriculum for: " + topic
}

func writeSystemPrompt(level EducationLevel) string {
	return fmt.Sprintf(`You are an expert educational writer specializing in accessible, multi-sensory learning for people with Dyslexia and ADHD.
The reader is %s.

Write a short, engaging chapter of a lesson. Guidelines:
1. Chunking: paragraphs of 2-3 sentences, frequent bullet points.
2. Clear language: define every term you introduce.
3. Active processing: include a "Think about this" prompt or a simple question.
4. Visual structure: <h3> headers for sections, <strong> for key terms.
5. Big idea: start with a one sentence summary of the chapter.

Return strictly HTML body content, without <html> or <body> tags. %s`, level.Audience(), noThinking)
}

func writePrompt(st LearningState) string {
	ch := st.Chapters[st.CurrentIndex]
	return fmt.Sprintf(`Topic: %s
Topic definition: %s
Chapter %d of %d: %s
Chapter description: %s

Write the content for this chapter.`, st.Topic, st.TopicDefinition, st.CurrentIndex+1, len(st.Chapters), ch.Title, ch.Description)
}

const designSystemPrompt = `You are a visual thinking expert. Write one specific image generation prompt for a header visual that summarizes the chapter concept in a whimsical watercolor style. Return only the prompt text, at most 80 words.`

func designPrompt(st LearningState, budget int) string {
	ch := st.Chapters[st.CurrentIndex]
	return fmt.Sprintf("Chapter: %s\nContent Summary: %s", ch.Title, helpers.Truncate(ch.Content, budget))
}

func integrateSystemPrompt(level EducationLevel) string {
	return fmt.Sprintf(`You are a learning coach writing the closing "smart review" of a short course.
The reader is %s.

Connect the chapters into one picture: a 3-5 bullet recap of the big ideas, how the chapters build on each other, and 3 quick self-check questions with short answers.
Return strictly HTML body content using <h3>, <ul>, <li>, <p> and <strong>. %s`, level.Audience(), noThinking)
}

func integratePrompt(st LearningState, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", st.Topic)
	for i, ch := range st.Chapters {
		fmt.Fprintf(&b, "\nCHAPTER %d: %s\n%s\n", i+1, ch.Title, helpers.Truncate(ch.Content, budget))
	}
	return b.String()
}
