// Package enrichment decides a clean description and category for raw bank
// transactions: first from the user's own categorization history, then from
// a generative model, degrading to the default tag when neither applies.
package enrichment

import (
	"context"

	"github.com/rs/zerolog/log"

	"grana/internal/domain/transaction"
)

const (
	// MaxBatchSize is the largest batch callers should submit per run.
	MaxBatchSize = 50
	// memoryLimit bounds how much history is loaded per enrichment call.
	memoryLimit = 200
)

// Input is one raw transaction to enrich.
type Input struct {
	ExternalID  string
	Description string
	Amount      float64
	Category    *string // aggregator's raw category, if any
}

// Result is the enrichment outcome for one transaction. Results are not in
// input order; callers must join back by ExternalID.
type Result struct {
	ExternalID       string `json:"externalId"`
	CleanDescription string `json:"cleanDescription"`
	Category         string `json:"category"`
}

// TextGenerator is the model transport. Implementations own the model
// fallback list; Generate returns an error only after exhausting it.
type TextGenerator interface {
	Configured() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// HistoryProvider loads a user's recent non-default categorizations,
// newest first.
type HistoryProvider interface {
	RecentCategorized(ctx context.Context, userID int64, limit int) ([]transaction.Memory, error)
}

// Engine enriches transaction batches.
type Engine struct {
	model   TextGenerator
	history HistoryProvider
}

// NewEngine creates a new enrichment engine. model may be an unconfigured
// client; the engine then falls back to keyword-free defaults.
func NewEngine(model TextGenerator, history HistoryProvider) *Engine {
	return &Engine{model: model, history: history}
}

// Enrich returns one result per input transaction. It never fails: every
// error path degrades to the raw description and the default tag.
func (e *Engine) Enrich(ctx context.Context, userID int64, batch []Input) []Result {
	if len(batch) == 0 {
		return nil
	}

	// Without a model credential the whole batch gets the fallback; keyword
	// categorization happens downstream in the reconciler.
	if e.model == nil || !e.model.Configured() {
		return fallbackResults(batch)
	}

	memory := e.loadMemory(ctx, userID)

	// Tier 1: exact memory hits skip the model entirely.
	results := make([]Result, 0, len(batch))
	var remainder []Input
	for _, in := range batch {
		if tag, ok := memory.Lookup(in.Description); ok {
			results = append(results, Result{
				ExternalID:       in.ExternalID,
				CleanDescription: in.Description,
				Category:         tag,
			})
			continue
		}
		remainder = append(remainder, in)
	}

	if len(remainder) == 0 {
		return results
	}

	// Tier 2: one model call for everything the memory could not resolve.
	return append(results, e.enrichWithModel(ctx, memory, remainder)...)
}

func (e *Engine) loadMemory(ctx context.Context, userID int64) *MemoryTable {
	if userID == 0 || e.history == nil {
		return nil
	}

	history, err := e.history.RecentCategorized(ctx, userID, memoryLimit)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to load categorization history, proceeding without memory")
		return nil
	}
	return BuildMemoryTable(history)
}

func (e *Engine) enrichWithModel(ctx context.Context, memory *MemoryTable, batch []Input) []Result {
	prompt := buildPrompt(memory.Examples(maxPromptExamples), batch)

	raw, err := e.model.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Int("count", len(batch)).Msg("Model enrichment unavailable, falling back to default category")
		return fallbackResults(batch)
	}

	parsed, err := parseModelResponse(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Unparseable model response, falling back to default category")
		return fallbackResults(batch)
	}

	byID := make(map[string]Result, len(parsed))
	for _, r := range parsed {
		byID[r.ExternalID] = r
	}

	results := make([]Result, 0, len(batch))
	for _, in := range batch {
		r, ok := byID[in.ExternalID]
		if !ok {
			results = append(results, fallbackResult(in))
			continue
		}
		if r.CleanDescription == "" {
			r.CleanDescription = in.Description
		}
		if !transaction.IsValidTag(r.Category) {
			r.Category = transaction.TagOutros
		}
		results = append(results, r)
	}
	return results
}

func fallbackResult(in Input) Result {
	return Result{
		ExternalID:       in.ExternalID,
		CleanDescription: in.Description,
		Category:         transaction.TagOutros,
	}
}

func fallbackResults(batch []Input) []Result {
	results := make([]Result, 0, len(batch))
	for _, in := range batch {
		results = append(results, fallbackResult(in))
	}
	return results
}
