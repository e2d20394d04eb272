package entity

// AdminCounterparty is the fixed identity every non-admin converses with.
const AdminCounterparty = "admin"

// Session is the locally authenticated actor. The token is opaque; its
// validity is enforced by the remote backend, so there is no local expiry.
type Session struct {
	Email     string `json:"email"`
	Token     string `json:"token"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AdminType string `json:"adminType"` // "user", or anything else meaning admin
}

func (s *Session) IsAdmin() bool {
	return s.AdminType != "" && s.AdminType != "user"
}
