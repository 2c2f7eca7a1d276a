package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type analysisExecutor func(r *run, ctx context.Context, st AnalysisState) (AnalysisDelta, error)

var analysisStages = map[Stage]struct {
	message string
	exec    analysisExecutor
}{
	StageReconnaissance: {"🛰️ Agent 1: Reconnaissance Scanner - Scanning article...", (*run).reconnaissance},
	StageExtraction:     {"🔎 Agent 2: Extraction Engine - Extracting evidence...", (*run).extraction},
	StageChallenge:      {"⚖️ Agent 3: Type 2 Challenger - Critical analysis...", (*run).challenge},
	StageSynthesis:      {"🧩 Agent 4: Synthesis Composer - Composing final summary...", (*run).synthesis},
}

// nextAnalysisStage is the unconditional transition of the linear machine.
func nextAnalysisStage(s Stage) Stage {
	switch s {
	case StageReconnaissance:
		return StageExtraction
	case StageExtraction:
		return StageChallenge
	case StageChallenge:
		return StageSynthesis
	default:
		return StageDone
	}
}

// RunAnalysis drives Reconnaissance, Extraction, Challenge and Synthesis in
// order. On failure the returned state holds every delta merged before the
// failing stage and the error is a *StageError matching ErrPipelineAborted.
func (o *Orchestrator) RunAnalysis(ctx context.Context, subject Subject, opts ...RunOption) (*AnalysisState, error) {
	r := o.newRun(PipelineAnalysis, opts)
	if strings.TrimSpace(subject.Title) == "" {
		subject.Title = "Untitled Article"
	}
	ctx, span := orchestratorTracer.Start(ctx, "pipeline.analysis",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
			attribute.String("subject.title", subject.Title),
			attribute.Int("subject.chars", len(subject.Text)),
		))
	defer span.End()

	st := NewAnalysisState(subject)
	r.logger.Info("analysis started", zap.String("title", subject.Title))

	for stage := StageReconnaissance; stage != StageDone; stage = nextAnalysisStage(stage) {
		def := analysisStages[stage]
		r.progress(stage, def.message)
		err := r.step(ctx, stage, func(ctx context.Context) error {
			delta, err := def.exec(r, ctx, *st)
			if err != nil {
				return err
			}
			return st.apply(delta)
		})
		if err == nil && stage == StageSynthesis && !st.IsComplete {
			err = abort(r.pipeline, stage, errors.New("synthesis did not complete the run"))
		}
		if err != nil {
			r.finish(ctx, span, err)
			return st, err
		}
		r.snapshot(stage, *st)
	}

	span.SetAttributes(attribute.Int("analysis.confidence", st.ConfidenceScore))
	r.progress(StageDone, fmt.Sprintf("✅ Analysis complete (confidence %d/10)", st.ConfidenceScore))
	r.finish(ctx, span, nil)
	return st, nil
}

func (r *run) reconnaissance(ctx context.Context, st AnalysisState) (AnalysisDelta, error) {
	budget := r.o.StageConfig(StageReconnaissance).InputBudget
	text, err := r.invoke(ctx, StageReconnaissance, reconSystemPrompt, reconPrompt(st.Subject, budget))
	if err != nil {
		return AnalysisDelta{}, err
	}
	return AnalysisDelta{ReconResult: &text}, nil
}

func (r *run) extraction(ctx context.Context, st AnalysisState) (AnalysisDelta, error) {
	budget := r.o.StageConfig(StageExtraction).InputBudget
	text, err := r.invoke(ctx, StageExtraction, extractionSystemPrompt, extractionPrompt(st, budget))
	if err != nil {
		return AnalysisDelta{}, err
	}
	return AnalysisDelta{ExtractionResult: &text}, nil
}

func (r *run) challenge(ctx context.Context, st AnalysisState) (AnalysisDelta, error) {
	budget := r.o.StageConfig(StageChallenge).InputBudget
	text, err := r.invoke(ctx, StageChallenge, challengeSystemPrompt, challengePrompt(st, budget))
	if err != nil {
		return AnalysisDelta{}, err
	}
	score, ok := ParseConfidenceScore(text)
	if !ok {
		r.fallback(ctx, StageChallenge, "confidence_score", &MalformedOutputError{Stage: StageChallenge, Reason: "no Score: X/10 token"})
	}
	return AnalysisDelta{ChallengeResult: &text, ConfidenceScore: &score}, nil
}

func (r *run) synthesis(ctx context.Context, st AnalysisState) (AnalysisDelta, error) {
	budget := r.o.StageConfig(StageSynthesis).InputBudget
	text, err := r.invoke(ctx, StageSynthesis, synthesisSystemPrompt, synthesisPrompt(st, budget))
	if err != nil {
		return AnalysisDelta{}, err
	}
	return AnalysisDelta{
		SynthesisResult:   &text,
		InfographicPrompt: ptr(BuildInfographicPrompt(st.Subject.Title, st.ConfidenceScore)),
		IsComplete:        ptr(true),
	}, nil
}
