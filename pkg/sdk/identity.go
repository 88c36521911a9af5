package sdk

// Role is the authorization role attached to an account.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleCoach  Role = "COACH"
	RolePlayer Role = "PLAYER"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RolePlayer:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role manages teams (coach or admin).
func (r Role) IsStaff() bool {
	return r == RoleCoach || r == RoleAdmin
}

// Identity is the authenticated account as returned by the identity endpoint.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
	AthleteID *int64 `json:"athlete_id,omitempty"`
}

// DisplayName returns "First Last", falling back to the username.
func (i *Identity) DisplayName() string {
	name := i.FirstName
	if i.LastName != "" {
		if name != "" {
			name += " "
		}
		name += i.LastName
	}
	if name == "" {
		return i.Username
	}
	return name
}
