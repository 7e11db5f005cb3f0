package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserPatchApplyDeduplicatesAccess(t *testing.T) {
	allowed := []string{"1", "3", "1", "2", "3"}
	user := User{UserID: "2", AllowedProjects: []string{"1"}}

	got := UserPatch{AllowedProjects: &allowed}.Apply(user)
	assert.Equal(t, []string{"1", "3", "2"}, got.AllowedProjects)

	allowed[0] = "9"
	assert.Equal(t, "1", got.AllowedProjects[0], "patched slice is copied")
	assert.Equal(t, []string{"1"}, user.AllowedProjects)
}

func TestUniqueProjectIDsNeverNil(t *testing.T) {
	assert.NotNil(t, UniqueProjectIDs(nil))
	assert.Empty(t, UniqueProjectIDs(nil))
}
