package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClonedSentinelsMatchByCode(t *testing.T) {
	err := Clone(ErrNotFound, "dossier not found")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "dossier not found", err.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestConsentRequiredIsDistinctFromForbidden(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, ErrConsentRequired.Status)
	assert.NotErrorIs(t, ErrConsentRequired, ErrForbidden)
}

func TestWithDetailsKeepsSentinelUntouched(t *testing.T) {
	err := WithDetails(ErrConflict, "", map[string]interface{}{"dossierId": "d1", "version": 1})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Nil(t, ErrConflict.Details)
	assert.Equal(t, "conflict", err.Message)
}

func TestFromErrorCollapsesUnknownErrors(t *testing.T) {
	appErr := FromError(fmt.Errorf("query: %w", sql.ErrConnDone))

	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestFromErrorFindsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Clone(ErrExpired, "link expired"))

	appErr := FromError(wrapped)
	assert.Equal(t, "EXPIRED", appErr.Code)
	assert.Equal(t, http.StatusGone, appErr.Status)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "unauthorized", ErrUnauthorized.Error())
	assert.Equal(t, "internal server error: boom", Wrap(errors.New("boom"), "INTERNAL_ERROR", 500, "internal server error").Error())

	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())
}
