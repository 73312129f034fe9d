package models

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleStudent    Role = "student"
	RoleParent     Role = "parent"
	RoleTeacher    Role = "teacher"
	RoleRegistrar  Role = "registrar"
	RoleAccountant Role = "accountant"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleGuest, RoleStudent, RoleParent, RoleTeacher, RoleRegistrar, RoleAccountant, RoleSuperAdmin}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// Subject is a person tracked through admission. Status is only meaningful for students.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	Status    Status    `db:"application_status" json:"status"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InWorkflow reports whether the subject's status governs its access.
func (s *Subject) InWorkflow() bool {
	return s != nil && s.Role == RoleStudent
}

// StatusHistory is one committed transition.
type StatusHistory struct {
	ID         string    `db:"id" json:"id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	FromStatus Status    `db:"from_status" json:"from_status"`
	ToStatus   Status    `db:"to_status" json:"to_status"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
}

// TransitionResult describes a committed transition.
type TransitionResult struct {
	SubjectID string    `json:"subject_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}
