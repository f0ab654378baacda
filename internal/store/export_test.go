package store

// withPrecommit installs a function that runs before each COMMIT, letting
// tests fail attempts with chosen driver errors.
func withPrecommit(fn func(attempt int) error) Option {
	return func(s *Store) {
		s.precommit = fn
	}
}
