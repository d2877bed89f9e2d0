package utils

import "strings"

// SliceToSet converts a slice of any comparable type to a set represented by a map[T]struct{}.
func SliceToSet[T comparable](slice []T) map[T]struct{} {
	set := make(map[T]struct{}, len(slice))
	for _, item := range slice {
		set[item] = struct{}{}
	}
	return set
}

// EnsureTrailingSlash returns s with exactly one trailing "/" unless s is empty.
func EnsureTrailingSlash(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimRight(s, "/") + "/"
}
