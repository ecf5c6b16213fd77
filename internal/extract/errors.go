package extract

import "errors"

// ErrUnknownRoute is returned when UserText is asked to extract from a
// route it has no compiled expression for.
var ErrUnknownRoute = errors.New("extract: unknown route")
