package auth

import "taskflow/internal/model"

// Permissions is the fixed capability set granted to a role.
type Permissions struct {
	CanCreateTasks           bool `json:"can_create_tasks"`
	CanAssignTasks           bool `json:"can_assign_tasks"`
	CanViewAllTasks          bool `json:"can_view_all_tasks"`
	CanViewAnalytics         bool `json:"can_view_analytics"`
	CanViewAdvancedAnalytics bool `json:"can_view_advanced_analytics"`
	CanManageCategories      bool `json:"can_manage_categories"`
	CanManageUsers           bool `json:"can_manage_users"`
	CanManageRoles           bool `json:"can_manage_roles"`
	CanRunMaintenance        bool `json:"can_run_maintenance"`
	// MaxActiveTasks caps non-completed tasks a user may create. Zero means unlimited.
	MaxActiveTasks int `json:"max_active_tasks"`
}

// PermissionsFor returns the permission set of role. Unknown roles get nothing.
func PermissionsFor(role model.Role) Permissions {
	switch role {
	case model.RoleCommon:
		return Permissions{
			CanCreateTasks:   true,
			CanViewAnalytics: true,
			MaxActiveTasks:   50,
		}
	case model.RolePremium:
		return Permissions{
			CanCreateTasks:           true,
			CanViewAnalytics:         true,
			CanViewAdvancedAnalytics: true,
		}
	case model.RoleAdmin:
		return Permissions{
			CanCreateTasks:           true,
			CanAssignTasks:           true,
			CanViewAllTasks:          true,
			CanViewAnalytics:         true,
			CanViewAdvancedAnalytics: true,
			CanManageCategories:      true,
			CanManageUsers:           true,
			CanRunMaintenance:        true,
		}
	case model.RoleSuperAdmin:
		return Permissions{
			CanCreateTasks:           true,
			CanAssignTasks:           true,
			CanViewAllTasks:          true,
			CanViewAnalytics:         true,
			CanViewAdvancedAnalytics: true,
			CanManageCategories:      true,
			CanManageUsers:           true,
			CanManageRoles:           true,
			CanRunMaintenance:        true,
		}
	default:
		return Permissions{}
	}
}

// IsAdmin reports whether role counts as an administrator.
func IsAdmin(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleSuperAdmin
}
