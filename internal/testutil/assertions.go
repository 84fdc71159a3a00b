// Package testutil provides common test assertions for result codes,
// origins and wire output.
package testutil

import (
	"encoding/json"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
)

// RequireTEEError asserts that err is a *errors.TEEError and returns it.
func RequireTEEError(t *testing.T, err error) *errors.TEEError {
	t.Helper()
	require.Error(t, err)
	var te *errors.TEEError
	require.True(t, stdErrors.As(err, &te), "expected *TEEError, got %T: %v", err, err)
	return te
}

// RequireCode asserts that err carries the given result code.
func RequireCode(t *testing.T, err error, code entities.ResultCode, msgAndArgs ...interface{}) {
	t.Helper()
	te := RequireTEEError(t, err)
	require.Equal(t, code.String(), te.Code.String(), msgAndArgs...)
}

// RequireOrigin asserts that err was raised by the given layer.
func RequireOrigin(t *testing.T, err error, origin entities.Origin, msgAndArgs ...interface{}) {
	t.Helper()
	te := RequireTEEError(t, err)
	require.Equal(t, origin.String(), te.Origin.String(), msgAndArgs...)
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}
