package mapping

import "errors"

// Sentinel kinds for mapping errors.
var (
	ErrMalformedMapping = errors.New("malformed mapping document")
)
