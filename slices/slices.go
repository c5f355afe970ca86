package slices

// Map maps every value of a slice with the given mapper.
func Map[F any, T any](original []F, mapper func(F) T) []T {
	destination := make([]T, len(original))
	for i := range original {
		destination[i] = mapper(original[i])
	}
	return destination
}

// IndexFunc returns the index of the first element matching the predicate, or -1.
func IndexFunc[T any](slice []T, predicate func(T) bool) int {
	for i, item := range slice {
		if predicate(item) {
			return i
		}
	}
	return -1
}
