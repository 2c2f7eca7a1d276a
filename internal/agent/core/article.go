package core

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RunArticle drafts a LinkedIn article from the subject in a single stage.
// Malformed output is replaced by FallbackArticle; a failed model call aborts
// the run with the partial state.
func (o *Orchestrator) RunArticle(ctx context.Context, subject Subject, opts ...RunOption) (*ArticleState, error) {
	r := o.newRun(PipelineArticle, opts)
	if strings.TrimSpace(subject.Title) == "" {
		subject.Title = "Untitled"
	}
	ctx, span := orchestratorTracer.Start(ctx, "pipeline.linkedin",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
			attribute.String("subject.title", subject.Title),
		))
	defer span.End()

	st := NewArticleState(subject)
	r.logger.Info("article started", zap.String("title", subject.Title))

	r.progress(StageArticle, "💼 Drafting LinkedIn article...")
	err := r.step(ctx, StageArticle, func(ctx context.Context) error {
		delta, err := r.article(ctx, st.clone())
		if err != nil {
			return err
		}
		return st.apply(delta)
	})
	if err == nil && !st.IsComplete {
		err = abort(r.pipeline, StageArticle, errors.New("article did not complete the run"))
	}
	if err != nil {
		r.finish(ctx, span, err)
		return st, err
	}
	r.snapshot(StageArticle, st.clone())

	r.progress(StageDone, "✅ Article ready")
	r.finish(ctx, span, nil)
	return st, nil
}

func (r *run) article(ctx context.Context, st ArticleState) (ArticleDelta, error) {
	budget := r.o.StageConfig(StageArticle).InputBudget
	text, err := r.invoke(ctx, StageArticle, articleSystemPrompt, articlePrompt(st.Subject, budget))
	if err != nil {
		return ArticleDelta{}, err
	}
	a, perr := ParseArticle(text, st.Subject.Title)
	if perr != nil {
		r.logger.Warn("article output malformed, using fallback article", zap.Error(perr))
		r.fallback(ctx, StageArticle, "fallback_article", perr)
	}
	return ArticleDelta{Article: &a, IsComplete: ptr(true)}, nil
}
