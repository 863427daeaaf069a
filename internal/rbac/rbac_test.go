package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Permission sets mirroring the seeded reference roles.
var (
	adminPerms = []string{
		"read:own_time", "read:department_time", "read:all_time",
		"write:time_logs", "write:projects", "write:tasks", "write:expenses",
		"admin:users", "admin:reports", "admin:audit",
	}
	managerPerms = []string{
		"read:own_time", "read:department_time", "write:time_logs",
		"write:projects", "write:tasks", "read:department_expenses",
		"admin:department",
	}
	developerPerms = []string{
		"read:own_time", "write:time_logs", "read:projects",
		"read:tasks", "write:own_expenses",
	}
)

func TestHas(t *testing.T) {
	assert.True(t, Has(developerPerms, PermReadOwnTime))
	assert.False(t, Has(developerPerms, PermReadAllTime))
	assert.False(t, Has(nil, PermReadOwnTime))
}

func TestHas_NoWildcardExpansion(t *testing.T) {
	wildcardOnly := []string{"admin:*"}

	// "admin:*" is matched literally, never expanded: a specific
	// permission check does not pass just because the wildcard is held.
	assert.True(t, Has(wildcardOnly, PermAdminAll))
	assert.False(t, Has(wildcardOnly, PermAdminUsers))
	assert.False(t, Has(wildcardOnly, PermWriteTimeLogs))
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin([]string{"admin:*"}))
	assert.True(t, IsAdmin(adminPerms), "admin:users grants the admin bypass")
	assert.False(t, IsAdmin(managerPerms), "admin:department is not the admin bypass")
	assert.False(t, IsAdmin(developerPerms))
	assert.False(t, IsAdmin(nil))
}

func TestResolveScope(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		requested   string
		want        Scope
	}{
		{
			name:        "admin requesting all gets all",
			permissions: adminPerms,
			requested:   "all_time",
			want:        ScopeAll,
		},
		{
			name:        "wildcard admin requesting all gets all",
			permissions: []string{"admin:*"},
			requested:   "all_expenses",
			want:        ScopeAll,
		},
		{
			name:        "manager requesting all is downgraded to department",
			permissions: managerPerms,
			requested:   "all_time",
			want:        ScopeDepartment,
		},
		{
			name:        "developer requesting all is downgraded to department",
			permissions: developerPerms,
			requested:   "all_time",
			want:        ScopeDepartment,
		},
		{
			name:        "own is always own, even for admins",
			permissions: adminPerms,
			requested:   "own_time",
			want:        ScopeOwn,
		},
		{
			name:        "developer requesting own gets own",
			permissions: developerPerms,
			requested:   "own_time",
			want:        ScopeOwn,
		},
		{
			name:        "department reports permission yields department",
			permissions: []string{"read:department_reports"},
			requested:   "department_reports",
			want:        ScopeDepartment,
		},
		{
			name:        "department request without reports permission falls back to own",
			permissions: managerPerms,
			requested:   "department_reports",
			want:        ScopeOwn,
		},
		{
			name:        "no permissions at all",
			permissions: nil,
			requested:   "department_reports",
			want:        ScopeOwn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveScope(tt.permissions, tt.requested))
		})
	}
}

// TestResolveScope_ScenarioUsers pins the documented behavior for the
// three reference accounts.
func TestResolveScope_ScenarioUsers(t *testing.T) {
	// admin@example.com, role admin (includes admin:users).
	assert.Equal(t, ScopeAll, ResolveScope(adminPerms, "all_time"))
	// bob@example.com, role manager (read:department_time, no admin:*).
	assert.Equal(t, ScopeDepartment, ResolveScope(managerPerms, "all_time"))
	// alice@example.com, role developer.
	assert.Equal(t, ScopeOwn, ResolveScope(developerPerms, "own_time"))
}
