// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// DerefString returns the pointed value or an empty string
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TrimRightSlash removes trailing slashes from a base URL
func TrimRightSlash(s string) string {
	return strings.TrimRight(s, "/")
}
