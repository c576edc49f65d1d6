// Package utils provides small generic helpers shared by the HTTP and
// service layers. Nothing here knows about queries or users.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a valid int. Whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageOf returns the 1-based page of items and the number of pages. Pages
// past the end, a page below 1, or a non-positive size yield an empty,
// non-nil slice so that JSON renders [] rather than null.
func PageOf[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		return []T{}, 0
	}
	pages := (len(items) + size - 1) / size
	if page < 1 || page > pages {
		return []T{}, pages
	}
	start := (page - 1) * size
	end := min(start+size, len(items))
	return items[start:end], pages
}
