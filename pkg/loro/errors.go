package loro

import "github.com/loro-dev/loro/internal/loroerr"

// Re-exported sentinel errors (spec.md §6.7/§7), so callers of this
// package never need to import internal/loroerr directly.
var (
	ErrVersionMismatch                = loroerr.ErrVersionMismatch
	ErrCannotCheckoutBeforeShallowRoot = loroerr.ErrCannotCheckoutBeforeShallowRoot
	ErrUnknownStyle                    = loroerr.ErrUnknownStyle
	ErrDetachedEditNotAllowed          = loroerr.ErrDetachedEditNotAllowed
	ErrContainerOwnedByAnotherDoc      = loroerr.ErrContainerOwnedByAnotherDoc
	ErrCyclicMove                      = loroerr.ErrCyclicMove
	ErrDuplicateContainerName          = loroerr.ErrDuplicateContainerName
	ErrChecksumMismatch                = loroerr.ErrChecksumMismatch
	ErrUnsupportedEncodeMode           = loroerr.ErrUnsupportedEncodeMode
	ErrContainerNotFound               = loroerr.ErrContainerNotFound
	ErrContainerDead                   = loroerr.ErrContainerDead
	ErrBadMagic                        = loroerr.ErrBadMagic
	ErrTruncated                       = loroerr.ErrTruncated
	ErrCyclicDependency                = loroerr.ErrCyclicDependency
	ErrUnknownFrontier                 = loroerr.ErrUnknownFrontier
)
