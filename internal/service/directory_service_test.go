package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-match-api/internal/directory"
	"github.com/noah-isme/therapy-match-api/internal/models"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
	"github.com/noah-isme/therapy-match-api/pkg/geo"
)

type fakeTherapistRepo struct {
	profiles  []models.TherapistProfile
	listCalls int
	listErr   error
	statuses  map[string]models.ProfileStatus
	deleted   map[string]time.Time
	updated   []*models.TherapistProfile
}

func (f *fakeTherapistRepo) List(ctx context.Context, filter models.TherapistFilter) ([]models.TherapistProfile, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.TherapistProfile
	for _, p := range f.profiles {
		if filter.PublicOnly && !p.PubliclyVisible() {
			continue
		}
		if !filter.IncludeDeleted && p.DeletedAt != nil {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeTherapistRepo) FindByID(ctx context.Context, id string) (*models.TherapistProfile, error) {
	for i := range f.profiles {
		if f.profiles[i].ID == id && f.profiles[i].DeletedAt == nil {
			p := f.profiles[i]
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTherapistRepo) Update(ctx context.Context, profile *models.TherapistProfile) error {
	f.updated = append(f.updated, profile)
	for i := range f.profiles {
		if f.profiles[i].ID == profile.ID {
			f.profiles[i] = *profile
		}
	}
	return nil
}

func (f *fakeTherapistRepo) UpdateStatus(ctx context.Context, id string, status models.ProfileStatus, hidden bool) error {
	if f.statuses == nil {
		f.statuses = map[string]models.ProfileStatus{}
	}
	f.statuses[id] = status
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			f.profiles[i].Status = status
			f.profiles[i].Hidden = hidden
		}
	}
	return nil
}

func (f *fakeTherapistRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if f.deleted == nil {
		f.deleted = map[string]time.Time{}
	}
	f.deleted[id] = at
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			f.profiles[i].DeletedAt = &at
		}
	}
	return nil
}

type stubGeocoder struct {
	points  map[string]geo.Point
	queries []string
}

func (s *stubGeocoder) Lookup(ctx context.Context, query string) (*geo.Point, error) {
	s.queries = append(s.queries, query)
	if p, ok := s.points[query]; ok {
		return &p, nil
	}
	return nil, nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func sampleProfiles() []models.TherapistProfile {
	return []models.TherapistProfile{
		{
			ID: "t-wien", FullName: "Mag. Anna Huber", City: "Wien",
			Latitude: floatPtr(48.2082), Longitude: floatPtr(16.3738),
			Formats: pq.StringArray{"praesenz"}, Specialties: pq.StringArray{"Angst"},
			Languages: pq.StringArray{"Deutsch"}, Status: models.ProfileVerified, AcceptingClients: true,
		},
		{
			ID: "t-graz", FullName: "Dr. Bernd Maier", City: "Graz",
			Latitude: floatPtr(47.0707), Longitude: floatPtr(15.4395),
			Formats: pq.StringArray{"praesenz"}, Specialties: pq.StringArray{"Depression"},
			Languages: pq.StringArray{"Deutsch", "Englisch"}, Status: models.ProfileVerified,
		},
		{
			ID: "t-online", FullName: "Mag. Clara Wolf", City: "Linz",
			Formats: pq.StringArray{"online"}, Specialties: pq.StringArray{"Trauma"},
			Languages: pq.StringArray{"Deutsch"}, Status: models.ProfileVerified, AcceptingClients: true,
		},
		{
			ID: "t-pending", FullName: "Mag. Dora Pending", City: "Wien",
			Formats: pq.StringArray{"online"}, Status: models.ProfilePending,
		},
	}
}

func newTestDirectoryService(repo *fakeTherapistRepo, geocoder Geocoder) *DirectoryService {
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	catalog := NewTherapistCatalog(repo, cache, time.Minute, nil)
	svc := NewDirectoryService(catalog, repo, geocoder, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestDirectoryServiceSearchNearbyWithGeocodedLocation(t *testing.T) {
	repo := &fakeTherapistRepo{profiles: sampleProfiles()}
	geocoder := &stubGeocoder{points: map[string]geo.Point{"Wien": {Lat: 48.2082, Lng: 16.3738}}}
	svc := newTestDirectoryService(repo, geocoder)

	page, err := svc.Search(context.Background(), directory.Filter{NearbyOnly: true, RadiusKm: 20, Location: "Wien"}, 1, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.Profile.ID)
	}
	assert.ElementsMatch(t, []string{"t-wien", "t-online"}, ids)
	assert.Equal(t, 2, page.Pagination.TotalCount)
	assert.Equal(t, []string{"Wien"}, geocoder.queries)
	assert.ElementsMatch(t, []string{"Angst", "Depression", "Trauma"}, page.Facets.Specializations)
}

func TestDirectoryServiceSearchUsesCatalogCache(t *testing.T) {
	repo := &fakeTherapistRepo{profiles: sampleProfiles()}
	svc := newTestDirectoryService(repo, nil)

	for i := 0; i < 3; i++ {
		page, err := svc.Search(context.Background(), directory.Filter{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Pagination.TotalCount)
	}
	assert.Equal(t, 1, repo.listCalls)
}

func TestDirectoryServiceSearchPaginates(t *testing.T) {
	repo := &fakeTherapistRepo{profiles: sampleProfiles()}
	svc := newTestDirectoryService(repo, nil)

	page, err := svc.Search(context.Background(), directory.Filter{Sort: directory.SortRating}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Pagination.TotalCount)

	page, err = svc.Search(context.Background(), directory.Filter{}, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestDirectoryServiceSearchValidation(t *testing.T) {
	svc := newTestDirectoryService(&fakeTherapistRepo{}, nil)

	_, err := svc.Search(context.Background(), directory.Filter{Sort: "cheapest"}, 1, 10)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Search(context.Background(), directory.Filter{PriceMin: intPtr(120), PriceMax: intPtr(80)}, 1, 10)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDirectoryServiceSearchRepositoryFailure(t *testing.T) {
	svc := newTestDirectoryService(&fakeTherapistRepo{listErr: errors.New("timeout")}, nil)
	_, err := svc.Search(context.Background(), directory.Filter{}, 1, 10)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestDirectoryServiceGet(t *testing.T) {
	repo := &fakeTherapistRepo{profiles: sampleProfiles()}
	repo.profiles[0].AvailabilityNote = strPtr("Termine ab sofort")
	svc := newTestDirectoryService(repo, nil)

	item, err := svc.Get(context.Background(), "t-wien")
	require.NoError(t, err)
	assert.Equal(t, "Mag. Anna Huber", item.Profile.FullName)
	assert.Equal(t, 0, item.Availability.Rank)

	_, err = svc.Get(context.Background(), "t-pending")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
