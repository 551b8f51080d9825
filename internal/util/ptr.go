package util

// Ptr returns a pointer to v, for optional config fields set from literals
func Ptr[T any](v T) *T {
	return &v
}
