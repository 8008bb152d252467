// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuidv7>, so IDs sort by creation time.
// Example: job-01928c3e-7a4b-7c1d-9e2f-3a4b5c6d7e8f
func Generate() string {
	u, err := uuid.NewV7()
	if err != nil {
		return Prefix + uuid.NewString()
	}
	return Prefix + u.String()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
