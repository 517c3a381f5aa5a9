package model

// Role discriminates the principal variants.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
	RoleProctor Role = "proctor"
)

// Principal is an authenticated caller as yielded by the identity provider.
// Student-only fields are empty for staff.
type Principal struct {
	UserID   int    `json:"user_id"`
	Role     Role   `json:"role"`
	Name     string `json:"name,omitempty"`
	RollNo   string `json:"roll_no,omitempty"`
	Group    string `json:"group,omitempty"`
	Subgroup string `json:"subgroup,omitempty"`
}

// IsStaff reports whether the principal may act on exams it does not sit.
func (p *Principal) IsStaff() bool {
	return p.Role == RoleTeacher || p.Role == RoleAdmin || p.Role == RoleProctor
}

// Student is a directory entry used for participation counts.
type Student struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RollNo   string `json:"roll_no"`
	Group    string `json:"group"`
	Subgroup string `json:"subgroup"`
}
