package kernel

// Role is the authorisation class of a principal. The set is closed.
type Role string

const (
	RoleCoach      Role = "coach"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// NormalizeRole maps legacy spellings onto the closed set. "sysadmin" is a
// historical synonym for super_admin and is normalised on read, never on write.
func NormalizeRole(s string) Role {
	switch s {
	case "sysadmin":
		return RoleSuperAdmin
	default:
		return Role(s)
	}
}

func (r Role) String() string { return string(r) }

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	switch r {
	case RoleCoach, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role grants tenant administration.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// IsSuperAdmin reports whether the role may cross tenant boundaries.
func (r Role) IsSuperAdmin() bool { return r == RoleSuperAdmin }

// IsCoach reports whether the role is the PIN-authenticated class.
func (r Role) IsCoach() bool { return r == RoleCoach }
