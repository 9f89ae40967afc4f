package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketguard/scoring/internal/errs"
)

// AssertErrorCode checks that err carries the expected code anywhere in
// its chain.
func AssertErrorCode(t *testing.T, err error, want errs.Code) bool {
	t.Helper()
	if !assert.Error(t, err) {
		return false
	}
	return assert.ErrorIs(t, err, &errs.Error{Code: want}, "error %q should carry code %s", err, want)
}

// AssertFieldError checks that err is a validation error naming field.
func AssertFieldError(t *testing.T, err error, field string) bool {
	t.Helper()
	if !AssertErrorCode(t, err, errs.CodeInvalidArgument) {
		return false
	}
	return assert.Contains(t, errs.FieldsOf(err), field)
}
