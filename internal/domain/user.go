package domain

import "time"

// User is a registered identity. Users are never updated after creation.
type User struct {
	ID           string
	Name         string
	CreationTime time.Time
}
