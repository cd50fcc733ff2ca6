// Package synthesis rebuilds a user's profile from the full interaction log.
// A synthesis pass is a pure function of the log snapshot plus the trait
// scorer's answer, so repeated runs over an unchanged log produce the same
// profile apart from revision and timestamp.
package synthesis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/persona/internal/feature"
	"github.com/kalambet/persona/internal/insight"
	"github.com/kalambet/persona/internal/recommend"
	"github.com/kalambet/persona/internal/storage"
	"github.com/kalambet/persona/internal/traits"
)

// dataThreshold is the minimum interaction count before a profile is marked
// as carrying usable data.
const dataThreshold = 1

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Synthesizer coordinates full profile rebuilds. Concurrent requests for the
// same user coalesce into a single pass.
type Synthesizer struct {
	store        storage.Store
	scorer       traits.Scorer
	scoreTimeout time.Duration
	clock        Clock
	logger       *slog.Logger

	group singleflight.Group
}

// Option tweaks a Synthesizer; used by tests to inject a clock.
type Option func(*Synthesizer)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Synthesizer) { s.clock = c }
}

// New creates a Synthesizer. A nil scorer is allowed and means every profile
// is built on fallback or default traits.
func New(store storage.Store, scorer traits.Scorer, scoreTimeout time.Duration, logger *slog.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		store:        store,
		scorer:       scorer,
		scoreTimeout: scoreTimeout,
		clock:        realClock{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize rebuilds the profile for username and stores it. Concurrent
// calls for the same user share one pass and all receive its result. The
// returned profile is the newly stored revision.
func (s *Synthesizer) Synthesize(ctx context.Context, username string) (storage.Profile, error) {
	v, err, _ := s.group.Do(username, func() (any, error) {
		return s.synthesize(ctx, username)
	})
	if err != nil {
		return storage.Profile{}, err
	}
	return v.(storage.Profile), nil
}

func (s *Synthesizer) synthesize(ctx context.Context, username string) (storage.Profile, error) {
	if err := storage.ValidateUsername(username); err != nil {
		return storage.Profile{}, err
	}

	recs, err := s.store.ReadAll(ctx, username)
	if err != nil {
		return storage.Profile{}, err
	}

	feats := feature.Extract(recs)
	insights := insight.Aggregate(recs)

	p := storage.Profile{
		Username:          username,
		UpdatedAt:         s.clock.Now().UTC(),
		TotalInteractions: len(recs),
		DataAvailable:     len(recs) >= dataThreshold,
		Communication:     feats.Communication,
		Topics:            feats.Topics,
		Skills:            feats.Skills,
		Resume:            insights,
	}

	p.Traits, p.TraitSource = s.score(ctx, username, feats, insights)
	p.Recommendations = recommend.Generate(p)

	if err := s.store.PutProfile(ctx, &p); err != nil {
		return storage.Profile{}, err
	}
	s.logger.Info("profile synthesized",
		"username", username,
		"revision", p.Revision,
		"interactions", p.TotalInteractions,
		"trait_source", p.TraitSource)
	return p, nil
}

// score runs the trait scorer under a bounded timeout. On any failure it
// falls back to the previously stored traits, or neutral midpoints when no
// prior profile exists. The fallback path never blocks on the scorer.
func (s *Synthesizer) score(ctx context.Context, username string, feats feature.Features, insights storage.ResumeInsights) (storage.Traits, string) {
	if s.scorer == nil || feats.UserTurns == 0 {
		return s.fallbackTraits(ctx, username)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.scoreTimeout)
	defer cancel()

	scored, err := s.scorer.Score(scoreCtx, traits.Evidence{
		Username: username,
		Features: feats,
		Insights: insights,
	})
	if err != nil {
		s.logger.Warn("trait scoring failed, using fallback", "username", username, "error", err)
		return s.fallbackTraits(ctx, username)
	}
	return scored, storage.TraitSourceModel
}

func (s *Synthesizer) fallbackTraits(ctx context.Context, username string) (storage.Traits, string) {
	prev, err := s.store.GetProfile(ctx, username)
	if err == nil && prev.TraitSource == storage.TraitSourceModel {
		return prev.Traits, storage.TraitSourceFallback
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("reading previous profile for fallback", "username", username, "error", err)
	}
	return traits.Neutral(), storage.TraitSourceDefault
}
