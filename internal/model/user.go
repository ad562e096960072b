package model

// User is a library patron.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Penalty  Penalty `json:"penalty"`
}

// Penalty is the outstanding fine recorded against a user.
type Penalty struct {
	Reason string  `json:"reason" bson:"reason"`
	Fine   float64 `json:"fine" bson:"fine"`
}

// Roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// DefaultName is used when a user registers without a display name.
const DefaultName = "Anonymous"

// NoPenalty is the penalty every new user starts with.
var NoPenalty = Penalty{Reason: "None", Fine: 0}

// NewUser returns a user with the registration defaults applied.
func NewUser(username, email, name string) *User {
	if name == "" {
		name = DefaultName
	}
	return &User{
		Username: username,
		Email:    email,
		Name:     name,
		Role:     RoleUser,
		Penalty:  NoPenalty,
	}
}

// IsAdmin reports whether the user has been promoted.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
