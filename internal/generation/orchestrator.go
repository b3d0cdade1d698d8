// Package generation builds answer, personalization and translation prompts
// and runs them against a generation provider.
package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/physicalai/tbrag/internal/llm"
	"github.com/physicalai/tbrag/internal/profile"
)

const (
	answerTemperature    = 0.7
	answerMaxTokens      = 800
	chapterTemperature   = 0.7
	chapterMaxTokens     = 4000
	translateTemperature = 0.3
	translateMaxTokens   = 4000
)

// AnswerRequest is the input of GenerateAnswer. A nil Profile yields the
// unpersonalized prompt; a non-empty SelectedText replaces Context.
type AnswerRequest struct {
	Question     string
	Context      []ContextChunk
	SelectedText string
	Profile      *profile.Profile
}

// Orchestrator turns domain requests into prompts for a Generator.
type Orchestrator struct {
	gen    llm.Generator
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(gen llm.Generator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{gen: gen, logger: logger}
}

// GenerateAnswer answers a question from retrieved context or a selection.
func (o *Orchestrator) GenerateAnswer(ctx context.Context, req AnswerRequest) (string, error) {
	out, err := o.gen.Generate(ctx, llm.Request{
		System:      answerSystemPrompt(req.Profile),
		User:        answerUserPrompt(req.Question, req.Context, req.SelectedText),
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	o.logger.Debug("answer generated", "context_chunks", len(req.Context), "personalized", req.Profile != nil)
	return out, nil
}

// GeneratePersonalizedChapter rewrites chapter markdown for a learner profile.
// The structural rules live in the prompt only; the output is not validated.
func (o *Orchestrator) GeneratePersonalizedChapter(ctx context.Context, chapter string, p profile.Profile) (string, error) {
	out, err := o.gen.Generate(ctx, llm.Request{
		System:      personalizeSystemPrompt(p),
		User:        "Please personalize this chapter markdown:\n\n" + chapter,
		Temperature: chapterTemperature,
		MaxTokens:   chapterMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("personalizing chapter: %w", err)
	}
	return out, nil
}

// TranslateChapter translates chapter markdown, keeping code untouched.
// Translating into the source language returns the text unchanged.
func (o *Orchestrator) TranslateChapter(ctx context.Context, chapter string, lang Language) (string, error) {
	if _, ok := languageNames[lang]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, string(lang))
	}
	if lang == SourceLanguage {
		return chapter, nil
	}

	protected, spans := ProtectCode(chapter)
	out, err := o.gen.Generate(ctx, llm.Request{
		System:      translateSystemPrompt(lang),
		User:        protected,
		Temperature: translateTemperature,
		MaxTokens:   translateMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("translating chapter to %s: %w", lang.Name(), err)
	}
	o.logger.Debug("chapter translated", "language", string(lang), "code_spans", len(spans))
	return RestoreCode(out, spans), nil
}
