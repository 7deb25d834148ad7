// Package sentiment summarizes the emotional tone of journal notes.
//
// Scoring itself is delegated to a Scorer supplied by the caller; this
// package only fans the notes out, retries transient scorer failures and
// aggregates the results.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbaliyan/moodlog/retry"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of notes scored in parallel.
const DefaultConcurrency = 4

// ErrScorerRequired is returned when an Analyzer is built without a Scorer.
var ErrScorerRequired = errors.New("sentiment: scorer is required")

// Scorer assigns a polarity score to a note. Positive scores are positive
// sentiment, negative scores negative sentiment, zero neutral.
type Scorer interface {
	Score(ctx context.Context, note string) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, note string) (float64, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, note string) (float64, error) {
	return f(ctx, note)
}

// Label is the qualitative reading of a score.
type Label int

const (
	Neutral Label = iota
	Positive
	Negative
)

func (l Label) String() string {
	switch l {
	case Positive:
		return "Positive"
	case Negative:
		return "Negative"
	default:
		return "Neutral"
	}
}

// LabelOf classifies a score by its sign.
func LabelOf(score float64) Label {
	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

// Summary is the sentiment of a set of notes.
type Summary struct {
	// Scores holds one score per input note, in input order.
	Scores []float64
	// Average is the mean score, 0 for no notes.
	Average float64
	// Label classifies Average.
	Label Label
}

// Summarize builds a Summary from precomputed scores.
func Summarize(scores []float64) *Summary {
	s := &Summary{Scores: scores}
	if len(scores) > 0 {
		var sum float64
		for _, v := range scores {
			sum += v
		}
		s.Average = sum / float64(len(scores))
	}
	s.Label = LabelOf(s.Average)
	return s
}

type options struct {
	concurrency int
	retry       retry.Config
	logger      *slog.Logger
}

// Option configures an Analyzer.
type Option func(*options)

// WithConcurrency sets how many notes are scored in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRetry sets the retry policy for each Score call.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.retry = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Analyzer scores notes with a Scorer.
type Analyzer struct {
	scorer Scorer
	opts   options
}

// NewAnalyzer creates an Analyzer around scorer.
func NewAnalyzer(scorer Scorer, opts ...Option) (*Analyzer, error) {
	if scorer == nil {
		return nil, ErrScorerRequired
	}
	o := options{
		concurrency: DefaultConcurrency,
		retry:       retry.DefaultConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retry.Logger == nil {
		o.retry.Logger = o.logger
	}
	return &Analyzer{scorer: scorer, opts: o}, nil
}

// Analyze scores every note and summarizes the result. The first note
// that cannot be scored cancels the rest and its error is returned.
func (a *Analyzer) Analyze(ctx context.Context, notes []string) (*Summary, error) {
	scores := make([]float64, len(notes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.concurrency)
	for i, note := range notes {
		g.Go(func() error {
			score, err := retry.DoWithResult(ctx, a.opts.retry, func(ctx context.Context) (float64, error) {
				return a.scorer.Score(ctx, note)
			})
			if err != nil {
				return fmt.Errorf("score note %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.opts.logger.Warn("sentiment analysis failed", "notes", len(notes), "error", err)
		return nil, err
	}
	return Summarize(scores), nil
}
