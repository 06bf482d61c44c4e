package codec

import "github.com/loro-dev/loro/internal/loroerr"

// Re-exported so callers only need to import internal/codec for framing
// errors, mirroring loroerr's sentinel set used throughout the rest of the
// module.
var (
	ErrTruncated             = loroerr.ErrTruncated
	ErrBadMagic              = loroerr.ErrBadMagic
	ErrChecksumMismatch      = loroerr.ErrChecksumMismatch
	ErrUnsupportedEncodeMode = loroerr.ErrUnsupportedEncodeMode
)
