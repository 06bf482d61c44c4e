// Package config holds document-wide options, mirroring the nested-struct
// options shape the teacher used for DistributedDbOptions/NetworkConfig.
package config

import "time"

// StyleConfig describes how a registered rich-text style key expands across
// newly inserted neighboring characters (spec.md §4.3.1).
type StyleConfig struct {
	Expand ExpandRule
}

type ExpandRule int

const (
	ExpandNone ExpandRule = iota
	ExpandBefore
	ExpandAfter
	ExpandBoth
)

// DocOptions configures a Document at construction time.
type DocOptions struct {
	// PeerID overrides the randomly chosen peer id. Zero means "choose one".
	PeerID uint64

	// Text holds text-container-wide settings.
	Text struct {
		// DefaultStyle is used for unregistered style keys when non-nil;
		// otherwise marking an unregistered key fails with ErrUnknownStyle.
		DefaultStyle *StyleConfig
		Styles       map[string]StyleConfig
	}

	// Commit controls Change-merge behavior (spec.md §4.4).
	Commit struct {
		MergeInterval time.Duration
	}

	// Undo holds undo/redo settings (spec.md §4.6). Nothing reads these
	// fields: Document.EnableUndo takes its merge interval, excluded
	// origins and max depth as its own arguments.
	Undo struct {
		MaxStackDepth   int
		ExcludedOrigins []string
	}

	// Shallow holds the shallow-snapshot collapse threshold (spec.md §4.5,
	// §6.8). Nothing reads it; no collapse takes place.
	Shallow struct {
		CollapseThreshold int
	}

	// Detached controls whether local edits are permitted after checkout to
	// a historical frontier (spec.md §4.5).
	Detached struct {
		EditingEnabled bool
	}
}

// Default returns the spec's documented defaults (§6.8).
func Default() DocOptions {
	var o DocOptions
	o.Commit.MergeInterval = 1000 * time.Millisecond
	o.Undo.MaxStackDepth = 100
	o.Shallow.CollapseThreshold = 256
	return o
}

const MaxChangeBlockSize = 4096
