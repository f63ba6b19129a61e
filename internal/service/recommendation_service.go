package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/therapy-match-api/internal/matching"
	"github.com/noah-isme/therapy-match-api/internal/models"
)

type publicProfileSource interface {
	PublicProfiles(ctx context.Context) ([]models.TherapistProfile, error)
}

type publishedCourseSource interface {
	ListPublished(ctx context.Context) ([]models.Course, error)
}

// RecommendationService loads candidates and hands them to the matching engine.
type RecommendationService struct {
	therapists publicProfileSource
	courses    publishedCourseSource
	engine     *matching.Engine
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewRecommendationService constructs a RecommendationService.
func NewRecommendationService(therapists publicProfileSource, courses publishedCourseSource, engine *matching.Engine, metrics *MetricsService, logger *zap.Logger) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = matching.NewEngine(matching.DefaultWeights(), matching.DefaultLimit)
	}
	return &RecommendationService{therapists: therapists, courses: courses, engine: engine, metrics: metrics, logger: logger}
}

// Recommend fetches therapists and courses concurrently and ranks both.
func (s *RecommendationService) Recommend(ctx context.Context, prefs matching.Preferences) (*matching.Recommendations, error) {
	var (
		therapists []models.TherapistProfile
		courses    []models.Course
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.therapists.PublicProfiles(gctx)
		if err != nil {
			return err
		}
		therapists = list
		return nil
	})
	g.Go(func() error {
		list, err := s.courses.ListPublished(gctx)
		if err != nil {
			return fmt.Errorf("list published courses: %w", err)
		}
		courses = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recs := s.engine.Recommend(prefs, therapists, courses)
	s.metrics.ObserveRecommendations("therapist", len(recs.Therapists))
	s.metrics.ObserveRecommendations("course", len(recs.Courses))
	s.logger.Debug("recommendations computed",
		zap.Int("therapist_candidates", len(therapists)),
		zap.Int("course_candidates", len(courses)),
		zap.String("risk_level", string(prefs.RiskLevel)),
	)
	return &recs, nil
}
