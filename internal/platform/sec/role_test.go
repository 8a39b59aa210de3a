// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/admitly/internal/platform/sec"
)

/*
TestUserRole_AtLeast walks the role hierarchy.
*/
func TestUserRole_AtLeast(t *testing.T) {
	assert.True(t, sec.RoleSuperAdmin.AtLeast(sec.RoleAdmin))
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleAdmin))
	assert.True(t, sec.RoleLearner.AtLeast(sec.RoleLearner))
	assert.False(t, sec.RoleLearner.AtLeast(sec.RoleAdmin))
	assert.False(t, sec.UserRole("ghost").AtLeast(sec.UserRole("ghost")))

	role, ok := sec.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, sec.RoleAdmin, role)

	_, ok = sec.ParseRole("member")
	assert.False(t, ok)
}
