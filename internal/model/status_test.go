package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input string
		want  Status
	}{
		{"New", StatusNew},
		{"new", StatusNew},
		{"STARTED", StatusStarted},
		{"started", StatusStarted},
		{"StArTeD", StatusStarted},
		{"deferred", StatusDeferred},
		{"Completed", StatusCompleted},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseStatus(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseStatusRejectsPartialMatches(t *testing.T) {
	// Each of these would match a pattern built from the joined status set.
	inputs := []string{
		"",
		"bogus",
		"tart",
		"New|Started",
		"New|Started|Deferred|Completed",
		".*",
		"Complete",
		" New",
		"New ",
		"Completedd",
	}
	for _, in := range inputs {
		_, err := ParseStatus(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrInvalidStatus), "input %q", in)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, in, se.Value)
	}
}

func TestStatusNext(t *testing.T) {
	assert.Equal(t, StatusStarted, StatusNew.Next())
	assert.Equal(t, StatusDeferred, StatusStarted.Next())
	assert.Equal(t, StatusCompleted, StatusDeferred.Next())
	assert.Equal(t, StatusNew, StatusCompleted.Next())
	assert.Equal(t, StatusStarted, Status("new").Next())
}

func TestCleanDescription(t *testing.T) {
	got, err := CleanDescription("  Buy milk ")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got)

	_, err = CleanDescription("   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = CleanDescription(strings.Repeat("x", MaxDescriptionLen+1))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// bounded in characters, not bytes
	_, err = CleanDescription(strings.Repeat("é", MaxDescriptionLen))
	assert.NoError(t, err)
}

func TestNotFoundError(t *testing.T) {
	err := ItemNotFound(42)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Contains(t, err.Error(), "id=42")
}
