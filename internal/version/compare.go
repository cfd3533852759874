package version

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b.
func Compare(a, b Version) int {
	return a.v.Compare(b.v)
}

// Less reports whether a sorts before b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}
