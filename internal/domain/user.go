package domain

import "time"

// SourceUser is the helpdesk account of a requester, agent or commenter.
type SourceUser struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	PhotoURL  string
	UpdatedAt time.Time
}

// HasEmail reports whether the user carries an email address.
func (u SourceUser) HasEmail() bool {
	return u.Email != ""
}
