package directory

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/errdefs"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "api failure"}
}

func TestClassifyTransientCodes(t *testing.T) {
	for _, code := range []string{
		"ThrottlingException",
		"TooManyRequestsException",
		"RequestLimitExceeded",
		"SlowDown",
		"ServiceUnavailableException",
		"InternalServerException",
		"RequestTimeout",
	} {
		err := classify(apiError(code), "failed to list users")
		assert.True(t, errdefs.IsTransient(err), "code %s should be transient", code)
	}
}

func TestClassifyHardFailureCodes(t *testing.T) {
	err := classify(apiError("AccessDeniedException"), "failed to create user alice")
	assert.False(t, errdefs.IsTransient(err))
	e, ok := errdefs.AsError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.KindPermission, e.Kind)
	assert.Equal(t, errdefs.CodeAccessDenied, e.Code)

	err = classify(apiError("ResourceNotFoundException"), "failed to describe group g-1")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestClassifyWrappedAPIError(t *testing.T) {
	// the SDK surfaces API errors inside operation errors; classify must
	// still find the code through the chain
	wrapped := fmt.Errorf("operation error IdentityStore: CreateUser, %w", apiError("ThrottlingException"))
	err := classify(wrapped, "failed to create user alice")
	assert.True(t, errdefs.IsTransient(err))
	e, ok := errdefs.AsError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeRateLimited, e.Code)
	assert.Contains(t, err.Error(), "failed to create user alice")
}

func TestClassifyUnknownCodePassesThrough(t *testing.T) {
	err := classify(apiError("ValidationException"), "failed to update group g-1")
	assert.False(t, errdefs.IsTransient(err))
	_, ok := errdefs.AsError(err)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "failed to update group g-1")
}

func TestClassifyNonAPIError(t *testing.T) {
	cause := errors.New("connection reset")
	err := classify(cause, "failed to list groups")
	assert.False(t, errdefs.IsTransient(err))
	assert.True(t, errors.Is(err, cause))
}
