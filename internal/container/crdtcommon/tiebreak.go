// Package crdtcommon holds the conflict-resolution tie-break shared by every
// container kind (spec.md §4.3): concurrent writes/inserts/moves compare by
// (lamport desc, peer desc), the higher pair winning.
//
// Grounded on the teacher's internal/resolver/crdt_resolver.go ResolveConflict,
// which picks a winner by vector-clock causality first and then by
// (timestamp, peer id) for the concurrent case; here lamport replaces
// timestamp as the spec requires, and the comparison is generalized into a
// single reusable helper instead of being inlined per call site.
package crdtcommon

import "github.com/loro-dev/loro/internal/version"

// Stamp is the (lamport, peer) pair every container op carries for
// tie-breaking concurrent writes.
type Stamp struct {
	Lamport version.Lamport
	Peer    version.PeerID
}

// Wins reports whether a should win over b under (lamport desc, peer desc):
// higher lamport wins; ties broken by higher peer id.
func Wins(a, b Stamp) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport > b.Lamport
	}
	return a.Peer > b.Peer
}
