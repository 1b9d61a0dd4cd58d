// Package ptr returns pointers to values, for optional configuration fields.
package ptr

// Int creates a pointer to the given int value.
func Int(i int) *int {
	return &i
}
