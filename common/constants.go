package common

const (
	// EnableLogging turns on the structural change logs of the index (root growth and collapse, page reuse). Open
	// and warning messages are always logged.
	EnableLogging = false

	// DefaultOrder is the fan-out used when a caller does not choose one. It keeps a node with short keys well
	// inside a single page.
	DefaultOrder = 64
)
