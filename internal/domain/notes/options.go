package notes

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithJournal sets the journal receiving committed mutations.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		if j != nil {
			s.journal = j
		}
	}
}
