package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-match-api/internal/directory"
	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/internal/service"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
)

type directoryServiceMock struct {
	filter   directory.Filter
	page     int
	pageSize int
}

func (m *directoryServiceMock) Search(ctx context.Context, filter directory.Filter, page, pageSize int) (*service.DirectoryPage, error) {
	m.filter, m.page, m.pageSize = filter, page, pageSize
	return &service.DirectoryPage{
		Items:      []directory.Item{{Profile: &models.TherapistProfile{ID: "t1", FullName: "Mag. Anna Huber"}}},
		Facets:     directory.Facets{Specializations: []string{"Angst"}, Languages: []string{}, InsuranceProviders: []string{}},
		Pagination: models.Pagination{Page: page, PageSize: 20, TotalCount: 1},
	}, nil
}

func (m *directoryServiceMock) Get(ctx context.Context, id string) (*directory.Item, error) {
	if id != "t1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "therapist not found")
	}
	return &directory.Item{Profile: &models.TherapistProfile{ID: id}}, nil
}

func TestDirectoryHandlerSearchBindsQuery(t *testing.T) {
	svc := &directoryServiceMock{}
	h := NewDirectoryHandler(svc)
	c, w := newJSONContext(http.MethodGet,
		"/therapists?q=angst&format=online&format=hybrid&nearby=true&radius=25&lat=48.2&lng=16.37&price_max=9000&sort=distance&page=2&page_size=10&language=Englisch",
		nil, nil)

	h.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "angst", svc.filter.Query)
	assert.Equal(t, []string{"online", "hybrid"}, svc.filter.Formats)
	assert.True(t, svc.filter.NearbyOnly)
	assert.Equal(t, 25.0, svc.filter.RadiusKm)
	require.NotNil(t, svc.filter.Origin)
	assert.InDelta(t, 16.37, svc.filter.Origin.Lng, 1e-9)
	require.NotNil(t, svc.filter.PriceMax)
	assert.Equal(t, 9000, *svc.filter.PriceMax)
	assert.Equal(t, directory.SortDistance, svc.filter.Sort)
	assert.Equal(t, []string{"Englisch"}, svc.filter.Languages)
	assert.Equal(t, 2, svc.page)
	assert.Equal(t, 10, svc.pageSize)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
	facets, ok := env.Meta["facets"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"Angst"}, facets["specializations"])
}

func TestDirectoryHandlerSearchRejectsPartialOrigin(t *testing.T) {
	h := NewDirectoryHandler(&directoryServiceMock{})

	c, w := newJSONContext(http.MethodGet, "/therapists?lat=48.2", nil, nil)
	h.Search(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodGet, "/therapists?lat=123&lng=16", nil, nil)
	h.Search(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDirectoryHandlerGet(t *testing.T) {
	h := NewDirectoryHandler(&directoryServiceMock{})

	c, w := newJSONContext(http.MethodGet, "/therapists/t1", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Get(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newJSONContext(http.MethodGet, "/therapists/t9", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "t9"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
