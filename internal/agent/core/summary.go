package core

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type summaryExecutor func(r *run, ctx context.Context, st SummaryState) (SummaryDelta, error)

var summaryStages = map[Stage]struct {
	message string
	exec    summaryExecutor
}{
	StageTakeaways:    {"📌 Extracting key takeaways...", (*run).takeaways},
	StageSections:     {"🗂️ Analyzing sections...", (*run).sections},
	StageExecutive:    {"📝 Creating executive summary...", (*run).executive},
	StageKeyTerms:     {"📖 Extracting key terms...", (*run).keyTerms},
	StageLimitations:  {"🧠 Analyzing limitations and biases...", (*run).limitations},
	StageLinkedInPost: {"💼 Drafting LinkedIn post...", (*run).linkedInPost},
}

func nextSummaryStage(s Stage) Stage {
	switch s {
	case StageTakeaways:
		return StageSections
	case StageSections:
		return StageExecutive
	case StageExecutive:
		return StageKeyTerms
	case StageKeyTerms:
		return StageLimitations
	case StageLimitations:
		return StageLinkedInPost
	default:
		return StageDone
	}
}

// RunSummary drives Takeaways, Sections, Executive, KeyTerms, Limitations and
// LinkedInPost in order with the same merge and abort rules as RunAnalysis.
func (o *Orchestrator) RunSummary(ctx context.Context, subject Subject, opts ...RunOption) (*SummaryState, error) {
	r := o.newRun(PipelineSummary, opts)
	if strings.TrimSpace(subject.Title) == "" {
		subject.Title = "Untitled"
	}
	ctx, span := orchestratorTracer.Start(ctx, "pipeline.summary",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
			attribute.String("subject.title", subject.Title),
		))
	defer span.End()

	st := NewSummaryState(subject)
	r.logger.Info("summary started", zap.String("title", subject.Title))

	for stage := StageTakeaways; stage != StageDone; stage = nextSummaryStage(stage) {
		def := summaryStages[stage]
		r.progress(stage, def.message)
		err := r.step(ctx, stage, func(ctx context.Context) error {
			delta, err := def.exec(r, ctx, st.clone())
			if err != nil {
				return err
			}
			return st.apply(delta)
		})
		if err == nil && stage == StageLinkedInPost && !st.IsComplete {
			err = abort(r.pipeline, stage, errors.New("linkedin post did not complete the run"))
		}
		if err != nil {
			r.finish(ctx, span, err)
			return st, err
		}
		r.snapshot(stage, st.clone())
	}

	r.progress(StageDone, "✅ Summary complete")
	r.finish(ctx, span, nil)
	return st, nil
}

func (r *run) takeaways(ctx context.Context, st SummaryState) (SummaryDelta, error) {
	budget := r.o.StageConfig(StageTakeaways).InputBudget
	text, err := r.invoke(ctx, StageTakeaways, takeawaysSystemPrompt, takeawaysPrompt(st.Subject, budget))
	if err != nil {
		return SummaryDelta{}, err
	}
	items, perr := ParseTakeaways(text)
	if perr != nil {
		r.fallback(ctx, StageTakeaways, "bullet_lines", perr)
	}
	return SummaryDelta{Takeaways: items}, nil
}

func (r *run) sections(ctx context.Context, st SummaryState) (SummaryDelta, error) {
	budget := r.o.StageConfig(StageSections).InputBudget
	text, err := r.invoke(ctx, StageSections, sectionsSystemPrompt, sectionsPrompt(st, budget))
	if err != nil {
		return SummaryDelta{}, err
	}
	secs, perr := ParseSections(text)
	if perr != nil {
		r.logger.Warn("sections output malformed, using overview section", zap.Error(perr))
		r.fallback(ctx, StageSections, "overview", perr)
	}
	return SummaryDelta{Sections: secs}, nil
}

func (r *run) executive(ctx context.Context, st SummaryState) (SummaryDelta, error) {
	budget := r.o.StageConfig(StageExecutive).InputBudget
	text, err := r.invoke(ctx, StageExecutive, executiveSystemPrompt, executivePrompt(st, budget))
	if err != nil {
		return SummaryDelta{}, err
	}
	summary, detailed, perr := ParseExecutive(text)
	if perr != nil {
		r.fallback(ctx, StageExecutive, "raw_text", perr)
	}
	return SummaryDelta{ExecutiveSummary: &summary, DetailedAnalysis: &detailed}, nil
}

func (r *run) keyTerms(ctx context.Context, st SummaryState) (SummaryDelta, error) {
	budget := r.o.StageConfig(StageKeyTerms).InputBudget
	text, err := r.invoke(ctx, StageKeyTerms, keyTermsSystemPrompt, keyTermsPrompt(st.Subject, budget))
	if err != nil {
		return SummaryDelta{}, err
	}
	terms, perr := ParseKeyTerms(text)
	if perr != nil {
		r.fallback(ctx, StageKeyTerms, "empty", perr)
	}
	return SummaryDelta{KeyTerms: terms}, nil
}

func (r *run) limitations(ctx context.Context, st SummaryState) (SummaryDelta, error) {
	budget := r.o.StageConfig(StageLimitations).InputBudget
	text, err := r.invoke(ctx, StageLimitations, limitationsSystemPrompt, limitationsPrompt(st, budget))
	if err != nil {
		return SummaryDelta{}, err
	}
	lims, biases, perr := ParseLimitations(text)
	if perr != nil {
		r.fallback(ctx, StageLimitations, "empty", perr)
	}
	return SummaryDelta{Limitations: lims, Biases: biases}, nil
}

func (r *run) linkedInPost(ctx context.Context, st SummaryState) (SummaryDelta, error) {
	budget := r.o.StageConfig(StageLinkedInPost).InputBudget
	text, err := r.invoke(ctx, StageLinkedInPost, linkedInPostSystemPrompt, linkedInPostPrompt(st, budget))
	if err != nil {
		return SummaryDelta{}, err
	}
	post, perr := ParseLinkedInPost(text)
	if perr != nil {
		r.fallback(ctx, StageLinkedInPost, "raw_text", perr)
	}
	return SummaryDelta{LinkedInPost: &post, IsComplete: ptr(true)}, nil
}
