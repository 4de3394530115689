package pipeline

import (
	"context"
)

// Pipeline chains the three daily stages.
type Pipeline struct {
	Fetch    *FetchStage
	NLP      *NLPStage
	Features *FeatureStage
}

// RunResult collects the summaries of a full run.
type RunResult struct {
	Fetch    FetchResult
	NLP      NLPResult
	Features FeatureResult
}

// Run executes fetch, NLP and feature stages for day, stopping at the first
// error.
func (p *Pipeline) Run(ctx context.Context, day string, lookback int) (RunResult, error) {
	var res RunResult
	var err error

	if res.Fetch, err = p.Fetch.Run(ctx, day); err != nil {
		return res, err
	}
	if res.NLP, err = p.NLP.Run(ctx, day); err != nil {
		return res, err
	}
	if res.Features, err = p.Features.Run(ctx, day, lookback); err != nil {
		return res, err
	}
	return res, nil
}
