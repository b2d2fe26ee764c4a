package armlink

import (
	"io"
)

// LinkPorter is the minimal interface required of an arm driver link. The
// vendor driver session is opaque; everything above this interface only
// sees a stream of telemetry lines going one way and command bytes going
// the other. This abstraction also enables unit testing without hardware.
type LinkPorter interface {
	io.ReadWriter
	io.Closer
}
