package state

// Store keeps at most one session per user.
type Store[T any] interface {
	// Get returns the user's session, or false when the user is idle.
	Get(userID int64) (T, bool)
	// Set starts or replaces the user's session.
	Set(userID int64, session T)
	// Clear ends the session; it is a no-op for idle users.
	Clear(userID int64)
	// InProgress reports whether the user has an active session.
	InProgress(userID int64) bool
}
