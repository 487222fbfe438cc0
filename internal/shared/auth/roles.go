package auth

// Role represents a tenant member role.
type Role string

// Tenant roles
const (
	RoleAdmin           Role = "Admin"           // Manage members and all clinical data
	RoleCareCoordinator Role = "CareCoordinator" // Work the care transition queue
	RoleProvider        Role = "Provider"        // Read clinical data, record follow-up
)

// Permission represents a specific action on a resource.
type Permission string

// Clinical data permissions
const (
	PermPatientRead    Permission = "patient.read"
	PermPatientWrite   Permission = "patient.write"
	PermEncounterRead  Permission = "encounter.read"
	PermEncounterWrite Permission = "encounter.write"
	PermAuditRead      Permission = "audit.read"
	PermAuditWrite     Permission = "audit.write"
)

// Care transition permissions
const (
	PermCareTransitionRead   Permission = "caretransition.read"
	PermCareTransitionUpdate Permission = "caretransition.update"
	PermCareTransitionAssign Permission = "caretransition.assign"
	PermCareTransitionClose  Permission = "caretransition.close"
)

// Tenant administration permissions
const (
	PermDashboardRead Permission = "dashboard.read"
	PermMemberManage  Permission = "member.manage"
)

// RolePermissions maps roles to their default permissions.
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermPatientRead, PermPatientWrite,
		PermEncounterRead, PermEncounterWrite,
		PermAuditRead, PermAuditWrite,
		PermCareTransitionRead, PermCareTransitionUpdate, PermCareTransitionAssign, PermCareTransitionClose,
		PermDashboardRead, PermMemberManage,
	},
	RoleCareCoordinator: {
		PermPatientRead, PermEncounterRead,
		PermCareTransitionRead, PermCareTransitionUpdate, PermCareTransitionAssign, PermCareTransitionClose,
		PermDashboardRead,
	},
	RoleProvider: {
		PermPatientRead, PermEncounterRead,
		PermCareTransitionRead, PermCareTransitionUpdate,
	},
}

// ParseRole returns the role for a name and whether it is known.
func ParseRole(name string) (Role, bool) {
	r := Role(name)
	_, ok := RolePermissions[r]
	return r, ok
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsFor expands roles into the de-duplicated permission set they grant.
func PermissionsFor(roles ...Role) []string {
	seen := make(map[Permission]bool)
	var out []string
	for _, r := range roles {
		for _, p := range RolePermissions[r] {
			if !seen[p] {
				seen[p] = true
				out = append(out, string(p))
			}
		}
	}
	return out
}
