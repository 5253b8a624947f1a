package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/cache"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

// Recommendation sources.
const (
	RecSourceRemote     = "remote"
	RecSourceSaved      = "saved"
	RecSourceMemory     = "memory"
	RecSourcePersistent = "persistent"
	RecSourceNone       = "none"
)

// DefaultRecommendationLimit is the batch size requested when none is set.
const DefaultRecommendationLimit = 10

// RecommendationConfig configures a RecommendationService.
type RecommendationConfig struct {
	UserID string
	Limit  int
	// CacheTTL bounds how long an in-memory batch is trusted. Zero disables
	// the in-memory cache.
	CacheTTL time.Duration
	// PersistentTTL bounds the persisted fallback batch. Zero never expires.
	PersistentTTL time.Duration
}

// RecommendationState is the presentation view of the recommendation list.
type RecommendationState struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Loading         bool                       `json:"is_loading"`
	Error           string                     `json:"error,omitempty"`
	Empty           bool                       `json:"is_empty"`
	Source          string                     `json:"source"`
	UpdatedAt       time.Time                  `json:"updated_at,omitempty"`
}

// RecommendationService owns the current recommendation list. Fetches run
// the raw batch through the pipeline and fall back to saved, then persisted
// recommendations when the backend cannot generate new ones.
type RecommendationService struct {
	gw         RecommendationGateway
	pipeline   *recommend.Pipeline
	memory     *cache.RecommendationCache
	persistent *cache.PersistentCache
	graphOf    func() graph.Graph
	cfg        RecommendationConfig
	logger     *zap.Logger

	seq     atomic.Uint64
	loading atomic.Int32

	mu        sync.RWMutex
	applied   uint64
	recs      []recommend.Recommendation
	raw       []gateway.RawRecommendation
	lastErr   error
	source    string
	updatedAt time.Time
}

// NewRecommendationService creates a service. memory and persistent may be
// nil. graphOf supplies the snapshot the in-memory cache key is derived from.
func NewRecommendationService(
	gw RecommendationGateway,
	pipeline *recommend.Pipeline,
	memory *cache.RecommendationCache,
	persistent *cache.PersistentCache,
	graphOf func() graph.Graph,
	cfg RecommendationConfig,
	logger *zap.Logger,
) *RecommendationService {
	if pipeline == nil {
		pipeline = recommend.NewPipeline(nil, nil, recommend.ScoreSorter{})
	}
	if graphOf == nil {
		graphOf = func() graph.Graph { return graph.Graph{} }
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultRecommendationLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{
		gw:         gw,
		pipeline:   pipeline,
		memory:     memory,
		persistent: persistent,
		graphOf:    graphOf,
		cfg:        cfg,
		logger:     logger,
		recs:       []recommend.Recommendation{},
		source:     RecSourceNone,
	}
}

// UserID returns the user recommendations are fetched for.
func (s *RecommendationService) UserID() string {
	return s.cfg.UserID
}

// Fetch resolves a recommendation batch for the current graph. The lookup
// order is the in-memory cache, a fresh remote batch, the backend's saved
// batch, then the persisted batch. An error is returned only when all of
// them come up empty; the previous list is kept in that case.
func (s *RecommendationService) Fetch(ctx context.Context) (RecommendationState, error) {
	s.loading.Add(1)
	err := s.resolve(ctx, s.seq.Add(1))
	s.loading.Add(-1)
	return s.State(), err
}

func (s *RecommendationService) resolve(ctx context.Context, seq uint64) error {
	hash := cache.GraphHash(s.graphOf().NodeIDs())
	key := cache.RecommendationKey(hash, s.cfg.UserID, s.cfg.Limit)
	if s.memory != nil && s.cfg.CacheTTL > 0 {
		if entry, ok := s.memory.Get(key); ok && !s.memory.IsExpired(entry, s.cfg.CacheTTL) {
			s.apply(seq, entry.Recommendations, nil, RecSourceMemory, entry.Timestamp)
			RecommendationFetches.WithLabelValues(RecSourceMemory).Inc()
			return nil
		}
	}

	raw, err := s.gw.RequestRecommendations(ctx, s.cfg.UserID, s.cfg.Limit)
	if err == nil {
		recs := s.pipeline.Process(raw)
		now := time.Now()
		if s.apply(seq, recs, raw, RecSourceRemote, now) {
			if s.memory != nil {
				s.memory.Set(key, recs, hash)
			}
			if s.persistent != nil {
				s.persistent.SaveRecommendations(ctx, s.cfg.UserID, recs)
			}
		}
		RecommendationFetches.WithLabelValues(RecSourceRemote).Inc()
		s.logger.Info("recommendations_fetched", zap.Int("raw", len(raw)), zap.Int("kept", len(recs)))
		return nil
	}
	s.logger.Warn("recommendation_request_failed", zap.Error(err))

	if saved, savedErr := s.gw.FetchSavedRecommendations(ctx); savedErr == nil && len(saved) > 0 {
		recs := s.pipeline.Process(saved)
		s.apply(seq, recs, saved, RecSourceSaved, time.Now())
		RecommendationFetches.WithLabelValues(RecSourceSaved).Inc()
		return nil
	} else if savedErr != nil {
		s.logger.Warn("saved_recommendations_failed", zap.Error(savedErr))
	}

	if s.persistent != nil {
		if recs, ts, ok := s.persistent.LoadRecommendations(ctx, s.cfg.UserID, s.cfg.PersistentTTL); ok {
			s.apply(seq, recs, nil, RecSourcePersistent, ts)
			RecommendationFetches.WithLabelValues(RecSourcePersistent).Inc()
			return nil
		}
	}

	RecommendationFetches.WithLabelValues(RecSourceNone).Inc()
	s.mu.Lock()
	if seq > s.applied {
		s.applied = seq
		s.lastErr = err
	}
	s.mu.Unlock()
	return err
}

// apply installs a batch unless a later-started fetch already resolved.
func (s *RecommendationService) apply(seq uint64, recs []recommend.Recommendation, raw []gateway.RawRecommendation, source string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		s.logger.Debug("recommendations_superseded", zap.Uint64("seq", seq))
		return false
	}
	s.applied = seq
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	s.recs = recs
	if raw != nil {
		s.raw = raw
	}
	s.lastErr = nil
	s.source = source
	s.updatedAt = at
	return true
}

// Restore installs the persisted batch, if any, without contacting the
// backend.
func (s *RecommendationService) Restore(ctx context.Context) bool {
	if s.persistent == nil {
		return false
	}
	recs, ts, ok := s.persistent.LoadRecommendations(ctx, s.cfg.UserID, s.cfg.PersistentTTL)
	if !ok {
		return false
	}
	return s.apply(s.seq.Add(1), recs, nil, RecSourcePersistent, ts)
}

// Clear discards the current list and every cached batch for the user.
// Fetches still in flight are superseded.
func (s *RecommendationService) Clear(ctx context.Context) {
	seq := s.seq.Add(1)
	if s.memory != nil {
		s.memory.Clear()
	}
	if s.persistent != nil {
		s.persistent.ClearRecommendations(ctx, s.cfg.UserID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = seq
	s.recs = []recommend.Recommendation{}
	s.raw = nil
	s.lastErr = nil
	s.source = RecSourceNone
	s.updatedAt = time.Time{}
}

// State returns a copy of the current list and its flags.
func (s *RecommendationService) State() RecommendationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := RecommendationState{
		Recommendations: append([]recommend.Recommendation{}, s.recs...),
		Loading:         s.loading.Load() > 0,
		Empty:           len(s.recs) == 0,
		Source:          s.source,
		UpdatedAt:       s.updatedAt,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

// Raw returns the last raw batch received from the backend.
func (s *RecommendationService) Raw() []gateway.RawRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gateway.RawRecommendation(nil), s.raw...)
}
