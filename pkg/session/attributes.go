package session

import "strings"

// ConnectionAttributes describes the driver behind a session's connection.
// It is used to pick the generated key strategy and never changes after a
// session is created.
type ConnectionAttributes struct {
	DriverName     string
	ProductName    string
	ProductVersion string
}

// ResolvedDriverName returns the normalized driver name used for quirk lookups.
func (a ConnectionAttributes) ResolvedDriverName() string {
	return strings.ToLower(strings.TrimSpace(a.DriverName))
}
