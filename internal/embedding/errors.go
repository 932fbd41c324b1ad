package embedding

import "errors"

// ErrService wraps any embedding provider failure that survived the retry
// policy.
var ErrService = errors.New("embedding service failure")
