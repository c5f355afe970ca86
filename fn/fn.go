package fn

// Consumer represents a function that accepts one input argument and returns no result.
type Consumer[T any] func(t T)

// AllConsumer creates a consumer that will execute all the given consumers, skipping nil ones.
func AllConsumer[T any](consumers ...Consumer[T]) Consumer[T] {
	return func(t T) {
		for _, consumer := range consumers {
			if consumer != nil {
				consumer(t)
			}
		}
	}
}
