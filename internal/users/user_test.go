package users_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/harbor/internal/users"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want users.Role
	}{
		{"manager", users.RoleManager},
		{"MANAGER", users.RoleManager},
		{" Admin ", users.RoleAdmin},
		{"staff", users.RoleStaff},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := users.ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRoleUnknown(t *testing.T) {
	_, err := users.ParseRole("owner")
	assert.ErrorIs(t, err, users.ErrUnknownRole)

	_, err = users.ParseRole("")
	assert.ErrorIs(t, err, users.ErrUnknownRole)
}
