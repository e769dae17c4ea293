/*
Package traffic
File: errors.go
Description: Sentinel errors returned by the engine. Callers match them with errors.Is.
*/

package traffic

import "errors"

var (
	// ErrInvalidTimeOrdering is returned when a component is asked to advance to
	// a time older than the last one it observed.
	ErrInvalidTimeOrdering = errors.New("invalid time ordering")

	// ErrInvalidConfiguration is returned at construction time for unusable tunables.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
