package qerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"configuration", Configurationf("op", "bad %s", "thing"), IsConfiguration},
		{"validation", Validationf("op", "bad"), IsValidation},
		{"not found", NotFoundf("op", "none"), IsNotFound},
		{"storage", WrapStorage("op", errors.New("conn reset")), IsStorage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			wrapped := fmt.Errorf("outer: %w", tc.err)
			assert.True(t, tc.check(wrapped), "kind must survive wrapping")
		})
	}
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := NotFoundf("composer.First", "no rows")
	assert.False(t, IsConfiguration(err))
	assert.False(t, IsStorage(err))
}

func TestWrapStorage(t *testing.T) {
	assert.Nil(t, WrapStorage("op", nil))

	cause := errors.New("connection refused")
	err := WrapStorage("db.Query", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "db.Query: storage error: connection refused", err.Error())

	again := WrapStorage("composer.End", err)
	assert.Same(t, err, again)
}

func TestRelationshipNotFound(t *testing.T) {
	err := RelationshipNotFound("graph.FindExplicit", "users", "posts__tags")
	assert.True(t, IsConfiguration(err))
	assert.Contains(t, err.Error(), `"posts__tags"`)
}
