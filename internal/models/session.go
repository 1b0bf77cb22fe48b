package models

import "time"

// Session is one authenticated browser/device instance. A signed bearer
// token references a session by id, but the row here is what makes the
// token revocable: a token for a deleted session is rejected.
type Session struct {
	ID           string // opaque, unguessable
	AccountID    string
	RoleContext  string // which permitted role this session was established under
	IPAddress    string
	UserAgent    string
	ExpiresAt    time.Time // absolute; never extended by activity
	LastActivity time.Time
	CreatedAt    time.Time
}
