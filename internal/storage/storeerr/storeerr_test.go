package storeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap("get", "x", nil))

	cause := errors.New("disk full")
	err := Wrap("create", "", cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage: create: disk full", err.Error())

	// Already wrapped errors are not double wrapped
	again := Wrap("update", "c-1", err)
	assert.Same(t, err, again)
}

func TestNotFoundAndConflictMatch(t *testing.T) {
	err := Wrap("update", "c-1", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrVersionConflict)
	assert.Contains(t, err.Error(), "c-1")

	outer := fmt.Errorf("merge failed: %w", Wrap("update", "c-2", ErrVersionConflict))
	assert.ErrorIs(t, outer, ErrVersionConflict)

	var se *Error
	require.ErrorAs(t, outer, &se)
	assert.Equal(t, "update", se.Op)
	assert.Equal(t, "c-2", se.ID)
}
