package plan

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
)

func TestSearchErrorsMapToHTTPStatus(t *testing.T) {
	_, err := Search(nil, 100, 0.01, 3, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPartitionUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatusCode(err))

	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(ErrInvalidTarget))
}
