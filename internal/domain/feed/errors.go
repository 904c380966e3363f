package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrDecode = errors.New("feed body is not decodable text")
)
