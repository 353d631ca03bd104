package digest

// Set of digests. Sets are immutable and can be created using
// SetBuilder. Elements are stored in sorted order without duplicates.
type Set struct {
	digests []Digest
}

// EmptySet is an instance of Set that contains zero elements.
var EmptySet = Set{}

// Items returns a sorted list of all elements stored within the set.
func (s Set) Items() []Digest {
	return s.digests
}

// Empty returns true if the set contains zero elements.
func (s Set) Empty() bool {
	return len(s.digests) == 0
}

// First returns the first element stored in the set. The boolean
// return value denotes whether the operation was successful (i.e., the
// set is non-empty).
func (s Set) First() (Digest, bool) {
	if len(s.digests) == 0 {
		return BadDigest, false
	}
	return s.digests[0], true
}

// Length returns the number of elements stored in the set.
func (s Set) Length() int {
	return len(s.digests)
}

// GetDifferenceAndIntersection partitions the elements stored in sets A
// and B across three resulting sets: one containing the elements
// present only in A, one containing the elements present in both A and
// B, and one containing the elements present only in B.
func GetDifferenceAndIntersection(setA, setB Set) (onlyA, both, onlyB Set) {
	a, b := setA.digests, setB.digests
	for len(a) > 0 && len(b) > 0 {
		if sA, sB := a[0].String(), b[0].String(); sA < sB {
			onlyA.digests = append(onlyA.digests, a[0])
			a = a[1:]
		} else if sA == sB {
			both.digests = append(both.digests, a[0])
			a, b = a[1:], b[1:]
		} else {
			onlyB.digests = append(onlyB.digests, b[0])
			b = b[1:]
		}
	}
	onlyA.digests = append(onlyA.digests, a...)
	onlyB.digests = append(onlyB.digests, b...)
	return onlyA, both, onlyB
}
