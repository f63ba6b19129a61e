package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/therapy-match-api/internal/directory"
	"github.com/noah-isme/therapy-match-api/internal/models"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
)

const (
	defaultDirectoryPageSize = 20
	maxDirectoryPageSize     = 100
)

type therapistProfileFinder interface {
	FindByID(ctx context.Context, id string) (*models.TherapistProfile, error)
}

// DirectoryPage is one page of a directory search.
type DirectoryPage struct {
	Items      []directory.Item  `json:"items"`
	Facets     directory.Facets  `json:"facets"`
	Pagination models.Pagination `json:"pagination"`
}

// DirectoryService serves the public therapist search.
type DirectoryService struct {
	catalog   publicProfileSource
	profiles  therapistProfileFinder
	geocoder  Geocoder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(catalog publicProfileSource, profiles therapistProfileFinder, geocoder Geocoder, validate *validator.Validate, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DirectoryService{catalog: catalog, profiles: profiles, geocoder: geocoder, validator: validate, logger: logger, now: time.Now}
}

// Search applies the filter to all public profiles and returns the requested page.
// A location string is geocoded into the search origin unless one was given.
func (s *DirectoryService) Search(ctx context.Context, filter directory.Filter, page, pageSize int) (*DirectoryPage, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid directory filter")
	}
	if filter.PriceMin != nil && filter.PriceMax != nil && *filter.PriceMin > *filter.PriceMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price_min must not exceed price_max")
	}

	if filter.Origin == nil && filter.Location != "" && s.geocoder != nil {
		point, err := s.geocoder.Lookup(ctx, filter.Location)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve location")
		}
		if point == nil {
			s.logger.Debug("directory location not resolved", zap.String("location", filter.Location))
		}
		filter.Origin = point
	}

	profiles, err := s.catalog.PublicProfiles(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load therapists")
	}

	result := directory.Apply(profiles, filter, s.now())

	page, pageSize = normalisePage(page, pageSize)
	start := (page - 1) * pageSize
	if start > len(result.Items) {
		start = len(result.Items)
	}
	end := start + pageSize
	if end > len(result.Items) {
		end = len(result.Items)
	}

	return &DirectoryPage{
		Items:  result.Items[start:end],
		Facets: result.Facets,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: result.Total,
		},
	}, nil
}

// Get returns one publicly visible profile with its derived availability.
func (s *DirectoryService) Get(ctx context.Context, id string) (*directory.Item, error) {
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "therapist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load therapist")
	}
	if !profile.PubliclyVisible() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "therapist not found")
	}

	result := directory.Apply([]models.TherapistProfile{*profile}, directory.Filter{}, s.now())
	if len(result.Items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "therapist not found")
	}
	item := result.Items[0]
	return &item, nil
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultDirectoryPageSize
	}
	if pageSize > maxDirectoryPageSize {
		pageSize = maxDirectoryPageSize
	}
	return page, pageSize
}
