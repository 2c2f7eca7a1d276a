package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
)

// RunLearningPath drives Plan, then WriteChapter and DesignChapter once per
// planned chapter, then Integrate. The plan always holds at least one
// chapter, so the loop always terminates.
func (o *Orchestrator) RunLearningPath(ctx context.Context, topic string, level EducationLevel, opts ...RunOption) (*LearningState, error) {
	r := o.newRun(PipelineLearning, opts)
	topic = strings.TrimSpace(topic)
	ctx, span := orchestratorTracer.Start(ctx, "pipeline.learning",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
			attribute.String("topic", topic),
			attribute.String("education_level", string(level)),
		))
	defer span.End()

	st := NewLearningState(topic, level)
	r.logger.Info("learning path started", zap.String("topic", topic), zap.String("education_level", string(st.EducationLevel)))

	fail := func(err error) (*LearningState, error) {
		r.finish(ctx, span, err)
		return st, err
	}
	exec := func(stage Stage, fn func(r *run, ctx context.Context, st LearningState) (LearningDelta, error)) error {
		err := r.step(ctx, stage, func(ctx context.Context) error {
			delta, err := fn(r, ctx, st.clone())
			if err != nil {
				return err
			}
			return st.apply(delta)
		})
		if err == nil {
			r.snapshot(stage, st.clone())
		}
		return err
	}

	stage := StagePlan
	for stage != StageDone {
		switch stage {
		case StagePlan:
			r.progress(stage, fmt.Sprintf("🗺️ Planner Agent: Designing curriculum for '%s'...", topic))
			if err := exec(stage, (*run).plan); err != nil {
				return fail(err)
			}
			if len(st.Chapters) == 0 {
				return fail(abort(r.pipeline, stage, errors.New("plan produced no chapters")))
			}
			span.SetAttributes(attribute.Int("learning.chapters", len(st.Chapters)))
			stage = StageWriteChapter

		case StageWriteChapter:
			ch := st.Chapters[st.CurrentIndex]
			r.progress(stage, fmt.Sprintf("✍️ Writer Agent: Writing chapter %d/%d '%s'...", st.CurrentIndex+1, len(st.Chapters), ch.Title))
			if err := exec(stage, (*run).writeChapter); err != nil {
				return fail(err)
			}
			stage = StageDesignChapter

		case StageDesignChapter:
			ch := st.Chapters[st.CurrentIndex]
			r.progress(stage, fmt.Sprintf("🎨 Designer Agent: Creating visual for '%s'...", ch.Title))
			if err := exec(stage, (*run).designChapter); err != nil {
				return fail(err)
			}
			stage = StageCheckMore

		case StageCheckMore:
			if err := st.apply(checkMore(st.clone())); err != nil {
				return fail(abort(r.pipeline, stage, err))
			}
			r.snapshot(stage, st.clone())
			if st.IsComplete {
				stage = StageIntegrate
			} else {
				stage = StageWriteChapter
			}

		case StageIntegrate:
			r.progress(stage, "🧭 Integrator Agent: Compiling smart review...")
			if err := exec(stage, (*run).integrate); err != nil {
				return fail(err)
			}
			stage = StageDone

		default:
			return fail(abort(r.pipeline, stage, fmt.Errorf("unknown stage %q", stage)))
		}
	}

	r.progress(StageDone, fmt.Sprintf("✅ Learning path ready: %d chapters", len(st.Chapters)))
	r.finish(ctx, span, nil)
	return st, nil
}

// checkMore advances the cursor or marks the loop complete.
func checkMore(st LearningState) LearningDelta {
	if next := st.CurrentIndex + 1; next < len(st.Chapters) {
		return LearningDelta{CurrentIndex: &next}
	}
	return LearningDelta{IsComplete: ptr(true)}
}

// plan never fails on model errors: any failure substitutes the fallback curriculum.
func (r *run) plan(ctx context.Context, st LearningState) (LearningDelta, error) {
	var cur Curriculum
	text, err := r.invoke(ctx, StagePlan, planSystemPrompt(st.EducationLevel, r.o.maxChapters), planPrompt(st.Topic))
	switch {
	case err != nil:
		if cerr := ctx.Err(); cerr != nil {
			return LearningDelta{}, cerr
		}
		r.logger.Warn("planner model call failed, using fallback curriculum", zap.Error(err))
		r.fallback(ctx, StagePlan, "model_error", err)
		cur = FallbackCurriculum(st.Topic)
	default:
		var perr error
		cur, perr = ParseCurriculum(text, st.Topic, r.o.maxChapters)
		if perr != nil {
			r.logger.Warn("planner output malformed, using fallback curriculum", zap.Error(perr))
			r.fallback(ctx, StagePlan, "malformed", perr)
		}
	}
	return LearningDelta{
		TopicDefinition: &cur.TopicDefinition,
		Chapters:        cur.Chapters,
		CurrentIndex:    ptr(0),
	}, nil
}

func (r *run) writeChapter(ctx context.Context, st LearningState) (LearningDelta, error) {
	text, err := r.invoke(ctx, StageWriteChapter, writeSystemPrompt(st.EducationLevel), writePrompt(st))
	if err != nil {
		return LearningDelta{}, err
	}
	content := helpers.UnwrapCodeFence(text)
	return LearningDelta{ChapterIndex: st.CurrentIndex, Content: &content}, nil
}

func (r *run) designChapter(ctx context.Context, st LearningState) (LearningDelta, error) {
	budget := r.o.StageConfig(StageDesignChapter).InputBudget
	text, err := r.invoke(ctx, StageDesignChapter, designSystemPrompt, designPrompt(st, budget))
	if err != nil {
		return LearningDelta{}, err
	}
	prompt := strings.Trim(helpers.UnwrapCodeFence(text), "\"' \n")
	delta := LearningDelta{ChapterIndex: st.CurrentIndex, ImagePrompt: &prompt}
	if url := r.illustrate(ctx, prompt, false); url != "" {
		delta.ImageURL = &url
	}
	return delta, nil
}

func (r *run) integrate(ctx context.Context, st LearningState) (LearningDelta, error) {
	budget := r.o.StageConfig(StageIntegrate).InputBudget
	text, err := r.invoke(ctx, StageIntegrate, integrateSystemPrompt(st.EducationLevel), integratePrompt(st, budget))
	if err != nil {
		return LearningDelta{}, err
	}
	review := helpers.UnwrapCodeFence(text)
	return LearningDelta{Review: &review}, nil
}

// illustrate returns a data URL, or "" when no image could be produced.
// Image failures never fail the stage.
func (r *run) illustrate(ctx context.Context, prompt string, wide bool) string {
	img, err := r.o.Illustrate(ctx, prompt, wide)
	if err != nil {
		r.logger.Warn("image generation failed", zap.Error(err))
		return ""
	}
	if img == nil {
		return ""
	}
	return DataURL(img)
}

// Illustrate renders prompt with the configured image generator and style.
// It returns nil, nil when no generator is configured.
func (o *Orchestrator) Illustrate(ctx context.Context, prompt string, wide bool) (*models.GeneratedImage, error) {
	if o.images == nil || strings.TrimSpace(prompt) == "" {
		return nil, nil
	}
	img, err := o.images.Generate(ctx, models.ImageRequest{Prompt: prompt, Style: o.imageStyle, Wide: wide})
	ok := err == nil && img != nil && len(img.Data) > 0
	o.telemetry.RecordImage(ctx, ok)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("image generator returned no data")
	}
	return img, nil
}

// DataURL embeds img as a base64 data URL.
func DataURL(img *models.GeneratedImage) string {
	mime := img.MimeType
	if mime == "" {
		mime = "image/webp"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
