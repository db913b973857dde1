package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	nf := NotFoundf("loan %d not found", 7)
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsValidation(nf))
	assert.Equal(t, "NOT_FOUND: loan 7 not found", nf.Error())

	v := Validationf("loan %d is already closed", 7)
	assert.True(t, IsValidation(v))
	assert.False(t, IsNotFound(v))
}

func TestErrorDetails(t *testing.T) {
	err := Validationf("insufficient stock").
		WithDetail("requested", 5).
		WithDetail("available", 2)

	require.NotNil(t, err.Details)
	assert.Equal(t, 5, err.Details["requested"])
	assert.Equal(t, 2, err.Details["available"])
}

func TestErrorKindsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("add line: %w", NotFoundf("asset item 3 not found"))
	assert.True(t, IsNotFound(wrapped))

	assert.False(t, IsNotFound(fmt.Errorf("plain failure")))
	assert.False(t, IsValidation(nil))
}
