package schedule

// FiredSet records trigger ids that have already fired in a session.
type FiredSet map[int]struct{}

// Has reports whether id has fired.
func (f FiredSet) Has(id int) bool {
	_, ok := f[id]
	return ok
}

// Add marks id as fired.
func (f FiredSet) Add(id int) {
	f[id] = struct{}{}
}

// Remove clears id so its window can fire again.
func (f FiredSet) Remove(id int) {
	delete(f, id)
}
