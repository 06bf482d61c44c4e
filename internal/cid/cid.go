// Package cid implements ContainerID (spec.md §3, §6.6): a root container
// addressed by name, or a child container addressed by the ID of the op
// that first created it.
package cid

import (
	"fmt"

	"github.com/loro-dev/loro/internal/version"
)

// Kind enumerates container kinds. Values match spec.md §6.6's
// ID.to_bytes() permutation (Map=0, List=1, Text=2, Tree=3, MovableList=4,
// Counter=5), which is distinct from the historical Option<ContainerID>
// postcard permutation also described there.
type Kind uint8

const (
	KindMap Kind = iota
	KindList
	KindText
	KindTree
	KindMovableList
	KindCounter
	KindUnknown = 0xFF
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "Map"
	case KindList:
		return "List"
	case KindText:
		return "Text"
	case KindTree:
		return "Tree"
	case KindMovableList:
		return "MovableList"
	case KindCounter:
		return "Counter"
	default:
		return "Unknown"
	}
}

// ContainerID is either a root container (Name, Kind) or a child container
// (CreatedBy, Kind). IsRoot discriminates the two.
type ContainerID struct {
	IsRoot    bool
	Name      string // valid iff IsRoot
	CreatedBy version.ID
	Kind      Kind
}

func Root(name string, kind Kind) ContainerID {
	return ContainerID{IsRoot: true, Name: name, Kind: kind}
}

func Child(createdBy version.ID, kind Kind) ContainerID {
	return ContainerID{IsRoot: false, CreatedBy: createdBy, Kind: kind}
}

func (c ContainerID) String() string {
	if c.IsRoot {
		return fmt.Sprintf("cid:root:%s:%s", c.Kind, c.Name)
	}
	return fmt.Sprintf("cid:child:%s:%s", c.Kind, c.CreatedBy)
}

// Key returns a value usable as a Go map key (ContainerID is already
// comparable, so Key is just the identity function, kept for call-site
// clarity in arena/oplog code that stores these in maps).
func (c ContainerID) Key() ContainerID { return c }
