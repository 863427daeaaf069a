// Package rbac implements permission checks and data-visibility scope
// resolution for authenticated requests.
package rbac

import "strings"

// Scope is the breadth of records a request may touch.
type Scope string

// Visibility scopes, narrowest first.
const (
	ScopeOwn        Scope = "own"
	ScopeDepartment Scope = "department"
	ScopeAll        Scope = "all"
)

// Permission identifies a granted capability. The known kinds checked
// by the service itself are enumerated below; role definitions remain
// free-form "action:resource" strings since roles are admin-configured
// reference data.
type Permission string

const (
	PermAdminAll          Permission = "admin:*"
	PermAdminUsers        Permission = "admin:users"
	PermAdminReports      Permission = "admin:reports"
	PermAdminAudit        Permission = "admin:audit"
	PermAdminDepartment   Permission = "admin:department"
	PermReadOwnTime       Permission = "read:own_time"
	PermReadDeptTime      Permission = "read:department_time"
	PermReadAllTime       Permission = "read:all_time"
	PermReadDeptReports   Permission = "read:department_reports"
	PermWriteTimeLogs     Permission = "write:time_logs"
	PermWriteOtherTime    Permission = "write:other_time"
	PermReadProjects      Permission = "read:projects"
	PermWriteProjects     Permission = "write:projects"
	PermReadTasks         Permission = "read:tasks"
	PermWriteTasks        Permission = "write:tasks"
	PermWriteExpenses     Permission = "write:expenses"
	PermWriteOwnExpenses  Permission = "write:own_expenses"
	PermReadDeptExpenses  Permission = "read:department_expenses"
)

// Has reports whether the permission set contains required. The match
// is exact string membership: no wildcard expansion is performed, and
// "admin:*" only matches when checked for literally (see IsAdmin).
func Has(permissions []string, required Permission) bool {
	for _, p := range permissions {
		if p == string(required) {
			return true
		}
	}
	return false
}

// HasAny reports whether any of the listed permissions is present.
func HasAny(permissions []string, required ...Permission) bool {
	for _, r := range required {
		if Has(permissions, r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the permission set carries the admin bypass.
// Every guard that supports scope escalation checks this explicitly
// alongside its specific permission.
func IsAdmin(permissions []string) bool {
	return HasAny(permissions, PermAdminAll, PermAdminUsers)
}

// ResolveScope derives the visibility scope for a request. The policy
// is a conservative downgrade: a caller asking for broader access than
// their permissions justify is silently narrowed, never rejected.
//
//	requested contains "all"  + admin permission      -> all
//	requested contains "all"  + no admin permission   -> department
//	requested contains "own"                          -> own
//	otherwise + read:department_reports               -> department
//	otherwise                                         -> own
func ResolveScope(permissions []string, requested string) Scope {
	if strings.Contains(requested, "all") {
		if IsAdmin(permissions) {
			return ScopeAll
		}
		return ScopeDepartment
	}

	if strings.Contains(requested, "own") {
		return ScopeOwn
	}

	if Has(permissions, PermReadDeptReports) {
		return ScopeDepartment
	}

	return ScopeOwn
}
