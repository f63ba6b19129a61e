package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/therapy-match-api/internal/directory"
	"github.com/noah-isme/therapy-match-api/internal/middleware"
	"github.com/noah-isme/therapy-match-api/internal/service"
	appErrors "github.com/noah-isme/therapy-match-api/pkg/errors"
	"github.com/noah-isme/therapy-match-api/pkg/geo"
	"github.com/noah-isme/therapy-match-api/pkg/response"
)

type directoryService interface {
	Search(ctx context.Context, filter directory.Filter, page, pageSize int) (*service.DirectoryPage, error)
	Get(ctx context.Context, id string) (*directory.Item, error)
}

// DirectoryHandler serves the public therapist directory.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs a DirectoryHandler.
func NewDirectoryHandler(svc directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: svc}
}

// Search godoc
// @Summary Search therapists
// @Description Filters, sorts and paginates verified public profiles. Facets are returned in meta.
// @Tags Directory
// @Produce json
// @Param q query string false "Free text"
// @Param format query []string false "online, praesenz or hybrid" collectionFormat(multi)
// @Param specialization query []string false "Specialization" collectionFormat(multi)
// @Param language query []string false "Language" collectionFormat(multi)
// @Param nearby query bool false "Restrict to radius around the origin"
// @Param radius query number false "Radius in km"
// @Param location query string false "Postal code or city"
// @Param lat query number false "Origin latitude"
// @Param lng query number false "Origin longitude"
// @Param price_min query int false "Minimum price in cents"
// @Param price_max query int false "Maximum price in cents"
// @Param insurance query bool false "Only profiles accepting insurance"
// @Param insurance_provider query []string false "Insurance provider" collectionFormat(multi)
// @Param gender query string false "Gender"
// @Param sort query string false "relevance, distance, price_asc, price_desc, experience, rating, availability"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /therapists [get]
func (h *DirectoryHandler) Search(c *gin.Context) {
	var filter directory.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid directory query"))
		return
	}
	origin, err := originFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Origin = origin

	page, err := h.service.Search(c.Request.Context(), filter, queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetMeta(c, "facets", page.Facets)
	response.JSON(c, http.StatusOK, page.Items, &page.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a therapist profile
// @Tags Directory
// @Produce json
// @Param id path string true "Therapist ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /therapists/{id} [get]
func (h *DirectoryHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// originFromQuery reads an explicit lat/lng pair. Both or neither must be set.
func originFromQuery(c *gin.Context) (*geo.Point, error) {
	rawLat, rawLng := c.Query("lat"), c.Query("lng")
	if rawLat == "" && rawLng == "" {
		return nil, nil
	}
	lat, latErr := strconv.ParseFloat(rawLat, 64)
	lng, lngErr := strconv.ParseFloat(rawLng, 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lat and lng must be valid coordinates")
	}
	return &geo.Point{Lat: lat, Lng: lng}, nil
}
