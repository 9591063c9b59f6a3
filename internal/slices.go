package internal

func Find[E any](elems []E, fn func(E) bool) (E, bool) {
	for _, elem := range elems {
		if fn(elem) {
			return elem, true
		}
	}
	var zero E
	return zero, false
}
