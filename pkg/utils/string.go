package utils

import "fmt"

// UniqueLabel returns base if it is not taken, otherwise the first
// "base-N" (N starting at 1) that is free. taken holds the labels already in
// use within the room.
func UniqueLabel(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
