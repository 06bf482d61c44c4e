// Package loroerr collects the sentinel errors the engine's public surface
// returns, matching spec.md §6.7/§7.
package loroerr

import "errors"

var (
	ErrVersionMismatch                = errors.New("loro: version mismatch")
	ErrCannotCheckoutBeforeShallowRoot = errors.New("loro: cannot checkout before shallow root")
	ErrUnknownStyle                    = errors.New("loro: unknown style key")
	ErrDetachedEditNotAllowed          = errors.New("loro: editing not allowed while detached")
	ErrContainerOwnedByAnotherDoc      = errors.New("loro: container already attached to another document")
	ErrCyclicMove                      = errors.New("loro: move would introduce a cycle")
	ErrDuplicateContainerName          = errors.New("loro: duplicate root container name for a different kind")
	ErrChecksumMismatch                = errors.New("loro: checksum mismatch")
	ErrUnsupportedEncodeMode           = errors.New("loro: unsupported encode mode")
	ErrContainerNotFound               = errors.New("loro: container not found")
	ErrContainerDead                   = errors.New("loro: container is dead")
	ErrBadMagic                        = errors.New("loro: bad magic bytes")
	ErrTruncated                       = errors.New("loro: truncated input")
	ErrCyclicDependency                = errors.New("loro: cyclic dependency in imported changes")
	ErrUnknownFrontier                 = errors.New("loro: checkout target references an unknown change")
)
