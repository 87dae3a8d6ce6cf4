package db

import "strings"

// IsUniqueViolation reports whether err is a Postgres unique violation. With a
// constraint name the check is scoped to that constraint; otherwise any
// duplicate key error matches.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	if constraintName == "" {
		return true
	}
	return strings.Contains(msg, constraintName)
}
