package tracker

import "errors"

var (
	// ErrAlreadyTracking is returned by Start while a session is active.
	ErrAlreadyTracking = errors.New("tracking already in progress")

	// ErrNoActiveSession is returned by Stop when nothing is being tracked.
	ErrNoActiveSession = errors.New("no active tracking session")

	// ErrPositioningUnavailable means no initial fix could be obtained.
	ErrPositioningUnavailable = errors.New("positioning unavailable")

	// ErrPermissionDenied is surfaced when the position source reports
	// the user revoked location access; it terminates the session.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrStreetDataUnavailable means the candidate street fetch failed;
	// a session cannot start without its street set.
	ErrStreetDataUnavailable = errors.New("street data unavailable")
)
