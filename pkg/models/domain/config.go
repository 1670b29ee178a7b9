package domain

import "fmt"

// SourceProfile is a named record-source connection from the user's profile
// registry.
type SourceProfile struct {
	Name   string
	Driver string
}

func (p SourceProfile) String() string {
	return fmt.Sprintf("%s:%s", p.Driver, p.Name)
}
