package mqtt

import "errors"

// ErrNoIngestor is returned when a source is created without a
// downstream ingestor.
var ErrNoIngestor = errors.New("mqtt: nil ingestor")
