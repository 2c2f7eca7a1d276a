package core

import "fmt"

// fieldMask records which state fields a run has written. Every per stage
// field may be written once; later stages only read it.
type fieldMask uint32

func (m *fieldMask) claim(bits fieldMask) error {
	if overlap := *m & bits; overlap != 0 {
		return fmt.Errorf("%w (fields %#x)", ErrFieldRewritten, uint32(overlap))
	}
	*m |= bits
	return nil
}

const (
	fieldRecon fieldMask = 1 << iota
	fieldExtraction
	fieldChallenge
	fieldConfidence
	fieldSynthesis
	fieldInfographic
	fieldAnalysisComplete
)

// NeutralConfidence is the score used when the challenge output carries none.
const NeutralConfidence = 5

// AnalysisState is threaded through the critical analysis pipeline.
type AnalysisState struct {
	Subject Subject `json:"subject"`

	ReconResult       string `json:"recon_result"`
	ExtractionResult  string `json:"extraction_result"`
	ChallengeResult   string `json:"challenge_result"`
	SynthesisResult   string `json:"synthesis_result"`
	ConfidenceScore   int    `json:"confidence_score"`
	InfographicPrompt string `json:"infographic_prompt"`
	IsComplete        bool   `json:"is_complete"`

	written fieldMask
}

// NewAnalysisState returns a fresh state holding only the inputs.
func NewAnalysisState(subject Subject) *AnalysisState {
	return &AnalysisState{Subject: subject, ConfidenceScore: NeutralConfidence}
}

// AnalysisDelta carries the fields one analysis stage contributes. Nil means untouched.
type AnalysisDelta struct {
	ReconResult       *string
	ExtractionResult  *string
	ChallengeResult   *string
	ConfidenceScore   *int
	SynthesisResult   *string
	InfographicPrompt *string
	IsComplete        *bool
}

func (d AnalysisDelta) mask() fieldMask {
	var m fieldMask
	if d.ReconResult != nil {
		m |= fieldRecon
	}
	if d.ExtractionResult != nil {
		m |= fieldExtraction
	}
	if d.ChallengeResult != nil {
		m |= fieldChallenge
	}
	if d.ConfidenceScore != nil {
		m |= fieldConfidence
	}
	if d.SynthesisResult != nil {
		m |= fieldSynthesis
	}
	if d.InfographicPrompt != nil {
		m |= fieldInfographic
	}
	if d.IsComplete != nil {
		m |= fieldAnalysisComplete
	}
	return m
}

// apply merges d into s. A delta touching an already written field is rejected whole.
func (s *AnalysisState) apply(d AnalysisDelta) error {
	if err := s.written.claim(d.mask()); err != nil {
		return err
	}
	if d.ReconResult != nil {
		s.ReconResult = *d.ReconResult
	}
	if d.ExtractionResult != nil {
		s.ExtractionResult = *d.ExtractionResult
	}
	if d.ChallengeResult != nil {
		s.ChallengeResult = *d.ChallengeResult
	}
	if d.ConfidenceScore != nil {
		s.ConfidenceScore = *d.ConfidenceScore
	}
	if d.SynthesisResult != nil {
		s.SynthesisResult = *d.SynthesisResult
	}
	if d.InfographicPrompt != nil {
		s.InfographicPrompt = *d.InfographicPrompt
	}
	if d.IsComplete != nil {
		s.IsComplete = *d.IsComplete
	}
	return nil
}

const (
	fieldTakeaways fieldMask = 1 << iota
	fieldSections
	fieldExecutive
	fieldDetailedAnalysis
	fieldKeyTerms
	fieldLimitations
	fieldLinkedInPost
	fieldSummaryComplete
)

// SummaryState is threaded through the executive summary pipeline.
type SummaryState struct {
	Subject Subject `json:"subject"`

	Takeaways        []string  `json:"takeaways"`
	Sections         []Section `json:"sections"`
	ExecutiveSummary string    `json:"executive_summary"`
	DetailedAnalysis string    `json:"detailed_analysis"`
	KeyTerms         []KeyTerm `json:"key_terms"`
	Limitations      []string  `json:"limitations"`
	Biases           []string  `json:"biases"`
	LinkedInPost     string    `json:"linkedin_post"`
	IsComplete       bool      `json:"is_complete"`

	written fieldMask
}

// NewSummaryState returns a fresh state holding only the inputs.
func NewSummaryState(subject Subject) *SummaryState {
	return &SummaryState{Subject: subject}
}

// SummaryDelta carries the fields one summary stage contributes.
type SummaryDelta struct {
	Takeaways        []string
	Sections         []Section
	ExecutiveSummary *string
	DetailedAnalysis *string
	KeyTerms         []KeyTerm
	Limitations      []string
	Biases           []string
	LinkedInPost     *string
	IsComplete       *bool
}

func (d SummaryDelta) mask() fieldMask {
	var m fieldMask
	if d.Takeaways != nil {
		m |= fieldTakeaways
	}
	if d.Sections != nil {
		m |= fieldSections
	}
	if d.ExecutiveSummary != nil {
		m |= fieldExecutive
	}
	if d.DetailedAnalysis != nil {
		m |= fieldDetailedAnalysis
	}
	if d.KeyTerms != nil {
		m |= fieldKeyTerms
	}
	if d.Limitations != nil || d.Biases != nil {
		m |= fieldLimitations
	}
	if d.LinkedInPost != nil {
		m |= fieldLinkedInPost
	}
	if d.IsComplete != nil {
		m |= fieldSummaryComplete
	}
	return m
}

func (s *SummaryState) apply(d SummaryDelta) error {
	if err := s.written.claim(d.mask()); err != nil {
		return err
	}
	if d.Takeaways != nil {
		s.Takeaways = append([]string(nil), d.Takeaways...)
	}
	if d.Sections != nil {
		s.Sections = cloneSections(d.Sections)
	}
	if d.ExecutiveSummary != nil {
		s.ExecutiveSummary = *d.ExecutiveSummary
	}
	if d.DetailedAnalysis != nil {
		s.DetailedAnalysis = *d.DetailedAnalysis
	}
	if d.KeyTerms != nil {
		s.KeyTerms = append([]KeyTerm(nil), d.KeyTerms...)
	}
	if d.Limitations != nil || d.Biases != nil {
		s.Limitations = append([]string{}, d.Limitations...)
		s.Biases = append([]string{}, d.Biases...)
	}
	if d.LinkedInPost != nil {
		s.LinkedInPost = *d.LinkedInPost
	}
	if d.IsComplete != nil {
		s.IsComplete = *d.IsComplete
	}
	return nil
}

// clone returns a copy that shares no slices with s.
func (s *SummaryState) clone() SummaryState {
	out := *s
	out.Takeaways = append([]string(nil), s.Takeaways...)
	out.Sections = cloneSections(s.Sections)
	out.KeyTerms = append([]KeyTerm(nil), s.KeyTerms...)
	out.Limitations = append([]string(nil), s.Limitations...)
	out.Biases = append([]string(nil), s.Biases...)
	return out
}

func cloneSections(in []Section) []Section {
	if in == nil {
		return nil
	}
	out := make([]Section, len(in))
	for i, sec := range in {
		sec.KeyPoints = append([]string(nil), sec.KeyPoints...)
		out[i] = sec
	}
	return out
}

const (
	fieldArticle fieldMask = 1 << iota
	fieldArticleComplete
)

// ArticleState is threaded through the linkedin article pipeline.
type ArticleState struct {
	Subject    Subject         `json:"subject"`
	Article    LinkedInArticle `json:"article"`
	IsComplete bool            `json:"is_complete"`

	written fieldMask
}

// NewArticleState returns a fresh state holding only the inputs.
func NewArticleState(subject Subject) *ArticleState {
	return &ArticleState{Subject: subject}
}

// ArticleDelta carries the fields the article stage contributes.
type ArticleDelta struct {
	Article    *LinkedInArticle
	IsComplete *bool
}

func (d ArticleDelta) mask() fieldMask {
	var m fieldMask
	if d.Article != nil {
		m |= fieldArticle
	}
	if d.IsComplete != nil {
		m |= fieldArticleComplete
	}
	return m
}

func (s *ArticleState) apply(d ArticleDelta) error {
	if err := s.written.claim(d.mask()); err != nil {
		return err
	}
	if d.Article != nil {
		a := *d.Article
		a.KeyPoints = append([]ArticlePoint(nil), a.KeyPoints...)
		s.Article = a
	}
	if d.IsComplete != nil {
		s.IsComplete = *d.IsComplete
	}
	return nil
}

func (s *ArticleState) clone() ArticleState {
	out := *s
	out.Article.KeyPoints = append([]ArticlePoint(nil), s.Article.KeyPoints...)
	return out
}

const (
	fieldTopicDefinition fieldMask = 1 << iota
	fieldChapters
	fieldReview
	fieldLearningComplete
)

const (
	chapterContent fieldMask = 1 << iota
	chapterImagePrompt
	chapterImageURL
)

// LearningState is threaded through the curriculum pipeline. CurrentIndex is
// the loop cursor and the only field that moves after it is first set.
type LearningState struct {
	Topic           string         `json:"topic"`
	EducationLevel  EducationLevel `json:"education_level"`
	TopicDefinition string         `json:"topic_definition"`
	Chapters        []Chapter      `json:"chapters"`
	CurrentIndex    int            `json:"current_index"`
	// Review is the cross chapter synthesis written once every chapter is done.
	Review     string `json:"review"`
	IsComplete bool   `json:"is_complete"`

	written        fieldMask
	chapterWritten []fieldMask
}

// NewLearningState returns a fresh state holding only the inputs.
func NewLearningState(topic string, level EducationLevel) *LearningState {
	if level == "" {
		level = DefaultEducationLevel
	}
	return &LearningState{Topic: topic, EducationLevel: level}
}

// LearningDelta carries the fields one curriculum stage contributes. Chapter
// fields (Content, ImagePrompt, ImageURL) apply to Chapters[ChapterIndex].
type LearningDelta struct {
	TopicDefinition *string
	Chapters        []Chapter
	CurrentIndex    *int

	ChapterIndex int
	Content      *string
	ImagePrompt  *string
	ImageURL     *string

	Review     *string
	IsComplete *bool
}

func (d LearningDelta) mask() (fieldMask, fieldMask) {
	var m, cm fieldMask
	if d.TopicDefinition != nil {
		m |= fieldTopicDefinition
	}
	if d.Chapters != nil {
		m |= fieldChapters
	}
	if d.Review != nil {
		m |= fieldReview
	}
	if d.IsComplete != nil {
		m |= fieldLearningComplete
	}
	if d.Content != nil {
		cm |= chapterContent
	}
	if d.ImagePrompt != nil {
		cm |= chapterImagePrompt
	}
	if d.ImageURL != nil {
		cm |= chapterImageURL
	}
	return m, cm
}

func (s *LearningState) apply(d LearningDelta) error {
	m, cm := d.mask()
	chapters := s.Chapters
	if d.Chapters != nil {
		chapters = d.Chapters
	}
	if cm != 0 && (d.ChapterIndex < 0 || d.ChapterIndex >= len(chapters)) {
		return fmt.Errorf("chapter index %d out of range [0,%d)", d.ChapterIndex, len(chapters))
	}
	if d.CurrentIndex != nil && (*d.CurrentIndex < 0 || *d.CurrentIndex >= len(chapters)) {
		return fmt.Errorf("current index %d out of range [0,%d)", *d.CurrentIndex, len(chapters))
	}
	// a fresh chapter list starts with nothing written
	var chapterMask fieldMask
	if cm != 0 && d.Chapters == nil {
		chapterMask = s.chapterWritten[d.ChapterIndex]
	}
	if err := chapterMask.claim(cm); err != nil {
		return err
	}
	if err := s.written.claim(m); err != nil {
		return err
	}

	if d.TopicDefinition != nil {
		s.TopicDefinition = *d.TopicDefinition
	}
	if d.Chapters != nil {
		s.Chapters = append([]Chapter(nil), d.Chapters...)
		s.chapterWritten = make([]fieldMask, len(s.Chapters))
	}
	if d.CurrentIndex != nil {
		s.CurrentIndex = *d.CurrentIndex
	}
	if cm != 0 {
		ch := &s.Chapters[d.ChapterIndex]
		if d.Content != nil {
			ch.Content = *d.Content
		}
		if d.ImagePrompt != nil {
			ch.ImagePrompt = *d.ImagePrompt
		}
		if d.ImageURL != nil {
			ch.ImageURL = *d.ImageURL
		}
		s.chapterWritten[d.ChapterIndex] = chapterMask
	}
	if d.Review != nil {
		s.Review = *d.Review
	}
	if d.IsComplete != nil {
		s.IsComplete = *d.IsComplete
	}
	return nil
}

// clone returns a copy that shares no slices with s.
func (s *LearningState) clone() LearningState {
	out := *s
	out.Chapters = append([]Chapter(nil), s.Chapters...)
	out.chapterWritten = append([]fieldMask(nil), s.chapterWritten...)
	return out
}

// LearningPath is the result handed to the report assembler.
type LearningPath struct {
	Topic           string         `json:"topic"`
	EducationLevel  EducationLevel `json:"education_level"`
	TopicDefinition string         `json:"topic_definition"`
	Chapters        []Chapter      `json:"chapters"`
	Review          string         `json:"review,omitempty"`
}

// Path projects the state into its result view.
func (s *LearningState) Path() LearningPath {
	return LearningPath{
		Topic:           s.Topic,
		EducationLevel:  s.EducationLevel,
		TopicDefinition: s.TopicDefinition,
		Chapters:        append([]Chapter(nil), s.Chapters...),
		Review:          s.Review,
	}
}

func ptr[T any](v T) *T { return &v }
