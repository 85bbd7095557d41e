// Package selection ranks scored candidates and draws one winner among the
// top of the ranking with fixed per-rank weights.
package selection

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/okian/rota/internal/domain/scoring"
)

// Default rotation policy.
const defaultTopN = 3

// DefaultWeights are the per-rank win probabilities of the top three.
func DefaultWeights() []float64 {
	return []float64{0.50, 0.30, 0.20}
}

// Source yields uniform values in [0,1). Implementations must be safe for
// concurrent use.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() } //nolint:gosec // fairness draw, not security

// lockedSource serialises a seeded generator.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSeededSource returns a deterministic, concurrency-safe Source.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // reproducible draws
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithTopN sets how many ranked candidates take part in the draw.
func WithTopN(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithWeights sets the per-rank weights. Ranks beyond the list get weight 0.
func WithWeights(weights []float64) Option {
	return func(s *Selector) {
		if len(weights) == 0 {
			return
		}
		for _, w := range weights {
			if w < 0 {
				return
			}
		}
		s.weights = slices.Clone(weights)
	}
}

// WithSource sets the random source.
func WithSource(src Source) Option {
	return func(s *Selector) {
		if src != nil {
			s.src = src
		}
	}
}

// Pick is the outcome of a draw.
type Pick struct {
	Candidate scoring.Result
	// Rank is the zero-based position of the winner in the ranking.
	Rank int
}

// Selector implements the ranked rotation policy.
type Selector struct {
	topN    int
	weights []float64
	src     Source
}

// New creates a selector with the default policy and a process-wide source.
func New(opts ...Option) *Selector {
	s := &Selector{
		topN:    defaultTopN,
		weights: DefaultWeights(),
		src:     globalSource{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Rank returns a copy of candidates sorted by descending score. Ties keep
// their input order.
func Rank(candidates []scoring.Result) []scoring.Result {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b scoring.Result) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

// Shortlist ranks candidates and keeps at most the configured top N.
func (s *Selector) Shortlist(candidates []scoring.Result) []scoring.Result {
	ranked := Rank(candidates)
	if len(ranked) > s.topN {
		ranked = ranked[:s.topN]
	}
	return ranked
}

// Select draws one winner. It reports false when there are no candidates.
//
// A single value r in [0,1) is drawn and weights are accumulated in rank
// order; the first candidate whose cumulative weight reaches r wins. When r is
// beyond the mass of the available slots the last shortlisted candidate wins.
func (s *Selector) Select(candidates []scoring.Result) (Pick, bool) {
	short := s.Shortlist(candidates)
	if len(short) == 0 {
		return Pick{}, false
	}

	r := s.src.Float64()
	cumulative := 0.0
	for i := range short {
		cumulative += s.weight(i)
		if cumulative >= r {
			return Pick{Candidate: short[i], Rank: i}, true
		}
	}

	last := len(short) - 1
	return Pick{Candidate: short[last], Rank: last}, true
}

func (s *Selector) weight(rank int) float64 {
	if rank < len(s.weights) {
		return s.weights[rank]
	}
	return 0
}
