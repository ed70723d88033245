package model

// Roles issued by the session layer.
const (
	RoleAdmin         = "admin"
	RoleRecordOfficer = "record_officer"
	RoleTeacher       = "teacher"
)

// Identity is the verified caller of a request. It is carried per request and
// passed explicitly to services; there is no process-wide session state.
type Identity struct {
	UserID int64
	Role   string
}
