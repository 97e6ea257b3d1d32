// Package assistant runs the summarize and tag pipelines for journal entries.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"devlog/internal/completion"
	"devlog/internal/domain"
	"devlog/internal/extract"
	"devlog/internal/prompt"
)

var (
	ErrEmptyContent    = errors.New("markdown content is empty")
	ErrSummarizeFailed = errors.New("failed to summarize markdown")
	ErrTagFailed       = errors.New("failed to generate tags")
)

// Completer returns the raw completion text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Recorder stores the outcome of every assistant call.
type Recorder interface {
	RecordRequest(ctx context.Context, record domain.RequestRecord) error
}

// Options configures the result cache and the optional request recorder.
type Options struct {
	CacheMaxEntries int
	CacheTTL        time.Duration
	// Recorder is optional.
	Recorder Recorder
	Log      *slog.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

// Assistant is safe for concurrent use.
type Assistant struct {
	completer Completer
	summaries *resultCache[string]
	tags      *resultCache[[]string]
	recorder  Recorder
	log       *slog.Logger
	now       func() time.Time
}

// New creates an Assistant backed by completer. Missing Log and Now fall
// back to slog.Default and time.Now.
func New(completer Completer, opts Options) *Assistant {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Assistant{
		completer: completer,
		summaries: newResultCache[string](opts.CacheMaxEntries, opts.CacheTTL),
		tags:      newResultCache[[]string](opts.CacheMaxEntries, opts.CacheTTL),
		recorder:  opts.Recorder,
		log:       log,
		now:       now,
	}
}

// Summarize returns an HTML fragment summarizing markdown. An empty
// completion yields an empty summary. Provider failures are logged and
// reported as ErrSummarizeFailed.
func (a *Assistant) Summarize(ctx context.Context, markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", ErrEmptyContent
	}

	call := a.begin(domain.TaskSummarize, markdown)

	if summary, ok := a.summaries.get(call.key, call.start); ok {
		a.finish(ctx, call, domain.OutcomeCached, nil)

		return summary, nil
	}

	raw, err := a.complete(ctx, call, markdown)
	if err != nil {
		a.finish(ctx, call, domain.OutcomeFailure, err)

		return "", ErrSummarizeFailed
	}

	summary := extract.Summary(raw)
	if summary != "" {
		a.summaries.set(call.key, summary, a.now())
	}
	a.finish(ctx, call, domain.OutcomeSuccess, nil)

	return summary, nil
}

// GenerateTags returns lowercase tag lines for markdown, possibly none.
// Provider failures are logged and reported as ErrTagFailed.
func (a *Assistant) GenerateTags(ctx context.Context, markdown string) ([]string, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrEmptyContent
	}

	call := a.begin(domain.TaskTag, markdown)

	if tags, ok := a.tags.get(call.key, call.start); ok {
		a.finish(ctx, call, domain.OutcomeCached, nil)

		return slices.Clone(tags), nil
	}

	raw, err := a.complete(ctx, call, markdown)
	if err != nil {
		a.finish(ctx, call, domain.OutcomeFailure, err)

		return nil, ErrTagFailed
	}

	tags := extract.Tags(raw)
	if len(tags) > 0 {
		a.tags.set(call.key, slices.Clone(tags), a.now())
	}
	a.finish(ctx, call, domain.OutcomeSuccess, nil)

	return tags, nil
}

// Cached reports whether a fresh result for markdown is already cached.
func (a *Assistant) Cached(task domain.Task, markdown string) bool {
	if strings.TrimSpace(markdown) == "" {
		return false
	}

	key := cacheKey(task, a.completer.Model(), contentHash(markdown))
	now := a.now()

	switch task {
	case domain.TaskSummarize:
		return a.summaries.contains(key, now)
	case domain.TaskTag:
		return a.tags.contains(key, now)
	default:
		return false
	}
}

func (a *Assistant) complete(ctx context.Context, c pendingCall, markdown string) (string, error) {
	p, err := prompt.Build(c.task, markdown)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	return a.completer.Complete(ctx, p)
}

type pendingCall struct {
	task       domain.Task
	model      string
	hash       string
	key        string
	contentLen int
	start      time.Time
}

func (a *Assistant) begin(task domain.Task, markdown string) pendingCall {
	model := a.completer.Model()
	hash := contentHash(markdown)

	return pendingCall{
		task:       task,
		model:      model,
		hash:       hash,
		key:        cacheKey(task, model, hash),
		contentLen: len(markdown),
		start:      a.now(),
	}
}

func (a *Assistant) finish(ctx context.Context, c pendingCall, outcome domain.Outcome, err error) {
	duration := a.now().Sub(c.start)
	errorKind := ""

	if err != nil {
		errorKind = string(completion.KindOf(err))
		if errorKind == "" {
			errorKind = "unknown"
		}

		a.log.ErrorContext(ctx, "Failed to complete assistant request",
			"error", err,
			"task", c.task,
			"errorKind", errorKind,
			"model", c.model,
			"contentLen", c.contentLen,
			"durationMs", duration.Milliseconds())
	} else {
		a.log.InfoContext(ctx, "Assistant request is completed",
			"task", c.task,
			"outcome", outcome,
			"model", c.model,
			"contentLen", c.contentLen,
			"durationMs", duration.Milliseconds())
	}

	if a.recorder == nil {
		return
	}

	record := domain.RequestRecord{
		Task:        c.task,
		ContentHash: c.hash,
		ContentLen:  c.contentLen,
		Model:       c.model,
		Outcome:     outcome,
		ErrorKind:   errorKind,
		Duration:    duration,
		CreatedAt:   c.start.UTC(),
	}

	if recordErr := a.recorder.RecordRequest(context.WithoutCancel(ctx), record); recordErr != nil {
		a.log.WarnContext(ctx, "Failed to record assistant request",
			"error", recordErr,
			"task", c.task,
			"outcome", outcome)
	}
}
