package reconcile

// Diff returns the roles in next but not in prev, and the roles in prev but not in next.
// Both results keep the order of their source slice and never share an element.
func Diff(prev, next []string) (toAdd, toRemove []string) {
	inPrev := make(map[string]bool, len(prev))
	for _, r := range prev {
		inPrev[r] = true
	}
	inNext := make(map[string]bool, len(next))
	for _, r := range next {
		inNext[r] = true
	}

	for _, r := range next {
		if !inPrev[r] {
			toAdd = append(toAdd, r)
			inPrev[r] = true
		}
	}
	for _, r := range prev {
		if !inNext[r] {
			toRemove = append(toRemove, r)
			inNext[r] = true
		}
	}
	return toAdd, toRemove
}
