package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
)

//go:embed templates
var templateFS embed.FS

// Image is an illustration embedded in a report.
type Image struct {
	URL template.URL
	Alt string
}

// NewImage wraps a generated image as an inline data URL. A nil image yields nil.
func NewImage(img *models.GeneratedImage, alt string) *Image {
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	return &Image{URL: template.URL(core.DataURL(img)), Alt: alt}
}

// Renderer turns pipeline results into standalone HTML documents.
type Renderer struct {
	analysis *template.Template
	summary  *template.Template
	learning *template.Template
	linkedin *template.Template
	md       goldmark.Markdown
	logger   *zap.Logger
	now      func() time.Time
}

func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger: logger,
		now:    time.Now,
	}
	funcs := template.FuncMap{
		"markdown": r.markdown,
		"richHTML": richHTML,
		"add":      func(a, b int) int { return a + b },
		"date":     func(t time.Time) string { return t.Format("January 2, 2006") },
		"gauge":    func(score int) int { return score * 10 },
	}
	r.analysis = mustParse(funcs, "base.html", "analysis.html")
	r.summary = mustParse(funcs, "base.html", "summary.html")
	r.learning = mustParse(funcs, "base.html", "learning.html")
	r.linkedin = mustParse(funcs, "base.html", "linkedin.html")
	return r
}

func mustParse(funcs template.FuncMap, names ...string) *template.Template {
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = "templates/" + n
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, patterns...))
}

// markdown renders model written markdown and sanitizes the result.
func (r *Renderer) markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(s), &buf); err != nil {
		r.logger.Warn("markdown conversion failed", zap.Error(err))
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(helpers.SanitizeHTMLRichText(buf.String()))
}

func richHTML(s string) template.HTML {
	return template.HTML(helpers.SanitizeHTMLRichText(s))
}

// Meta is the header every report page shares.
type Meta struct {
	Title       string
	Kind        models.ReportKind
	GeneratedAt time.Time
}

type analysisView struct {
	Meta
	Source      string
	State       *core.AnalysisState
	Hero        *Image
	Infographic *Image
}

// Analysis renders a finished analysis run.
func (r *Renderer) Analysis(st *core.AnalysisState, hero, infographic *models.GeneratedImage) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("render analysis: nil state")
	}
	title := titleOr(st.Subject.Title, "Untitled Article")
	return r.execute(r.analysis, analysisView{
		Meta:        Meta{Title: title, Kind: models.ReportAnalysis, GeneratedAt: r.now()},
		Source:      st.Subject.Source,
		State:       st,
		Hero:        NewImage(hero, title),
		Infographic: NewImage(infographic, "Analysis infographic"),
	})
}

type sectionView struct {
	core.Section
	Image *Image
}

type summaryView struct {
	Meta
	Source   string
	State    *core.SummaryState
	Hero     *Image
	Sections []sectionView
}

// Summary renders a finished executive summary run. sectionImages is indexed
// like st.Sections; missing or nil entries render the section without a visual.
func (r *Renderer) Summary(st *core.SummaryState, hero *models.GeneratedImage, sectionImages []*models.GeneratedImage) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("render summary: nil state")
	}
	title := titleOr(st.Subject.Title, "Executive Summary")
	sections := make([]sectionView, len(st.Sections))
	for i, sec := range st.Sections {
		sections[i] = sectionView{Section: sec}
		if i < len(sectionImages) {
			sections[i].Image = NewImage(sectionImages[i], "Visual for "+sec.Title)
		}
	}
	return r.execute(r.summary, summaryView{
		Meta:     Meta{Title: title, Kind: models.ReportSummary, GeneratedAt: r.now()},
		Source:   st.Subject.Source,
		State:    st,
		Hero:     NewImage(hero, title),
		Sections: sections,
	})
}

type linkedInView struct {
	Meta
	Source  string
	Article core.LinkedInArticle
	Hero    *Image
}

// LinkedIn renders a finished LinkedIn article run.
func (r *Renderer) LinkedIn(st *core.ArticleState, hero *models.GeneratedImage) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("render linkedin: nil state")
	}
	title := titleOr(st.Article.Headline, titleOr(st.Subject.Title, "LinkedIn Article"))
	return r.execute(r.linkedin, linkedInView{
		Meta:    Meta{Title: title, Kind: models.ReportLinkedIn, GeneratedAt: r.now()},
		Source:  st.Subject.Source,
		Article: st.Article,
		Hero:    NewImage(hero, title),
	})
}

type chapterView struct {
	core.Chapter
	Image *Image
}

type learningView struct {
	Meta
	Path     core.LearningPath
	Level    string
	Chapters []chapterView
}

// Learning renders a finished learning path.
func (r *Renderer) Learning(path core.LearningPath) ([]byte, error) {
	chapters := make([]chapterView, len(path.Chapters))
	for i, ch := range path.Chapters {
		chapters[i] = chapterView{Chapter: ch}
		if strings.HasPrefix(ch.ImageURL, "data:image/") || strings.HasPrefix(ch.ImageURL, "https://") {
			chapters[i].Image = &Image{URL: template.URL(ch.ImageURL), Alt: "Visual for " + ch.Title}
		}
	}
	level := strings.ReplaceAll(string(path.EducationLevel), "_", " ")
	return r.execute(r.learning, learningView{
		Meta:     Meta{Title: titleOr(path.Topic, "Learning Path"), Kind: models.ReportLearning, GeneratedAt: r.now()},
		Path:     path,
		Level:    level,
		Chapters: chapters,
	})
}

func (r *Renderer) execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// Abstract returns a short plain text preview for archive listings.
func Abstract(s string, limit int) string {
	s = helpers.SanitizeHTMLStrict(s)
	s = strings.Join(strings.Fields(s), " ")
	cut := helpers.Truncate(s, limit)
	if len(cut) < len(s) {
		return strings.TrimSpace(cut) + "…"
	}
	return cut
}

func titleOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
