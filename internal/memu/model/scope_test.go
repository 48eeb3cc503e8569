package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeMatchesEmptyFilter(t *testing.T) {
	s := Scope{"user_id": "u1"}
	assert.True(t, s.Matches(nil))
	assert.True(t, s.Matches(Scope{}))
}

func TestScopeMatchesRequiresAllFields(t *testing.T) {
	s := Scope{"user_id": "u1", "agent_id": "a1"}
	assert.True(t, s.Matches(Scope{"user_id": "u1"}))
	assert.False(t, s.Matches(Scope{"user_id": "u1", "agent_id": "a2"}))
	assert.False(t, s.Matches(Scope{"session_id": "s1"}))
}

func TestScopeCloneIsIndependent(t *testing.T) {
	s := Scope{"user_id": "u1"}
	c := s.Clone()
	c["user_id"] = "u2"
	assert.Equal(t, "u1", s["user_id"])
}

func TestValidateFilterRejectsUnknownField(t *testing.T) {
	known := map[string]struct{}{"user_id": {}}
	err := ValidateFilter(Scope{"agent_id": "a1"}, known)
	assert.ErrorIs(t, err, ErrUnknownScopeField)
}

func TestValidateFilterAcceptsKnownFields(t *testing.T) {
	known := map[string]struct{}{"user_id": {}}
	err := ValidateFilter(Scope{"user_id": "u1"}, known)
	assert.NoError(t, err)
}
