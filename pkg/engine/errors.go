package engine

import "errors"

// ErrNoAnalyzers is returned when a static run is requested with an empty
// analyzer registry.
var ErrNoAnalyzers = errors.New("no analyzers registered")
