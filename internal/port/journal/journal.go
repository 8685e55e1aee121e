// Package journal defines the port for append-only persistence logs.
// One journal exists per entity kind; records are self-describing and
// replayed in file order at startup.
package journal

import "context"

// Kind identifies which entity log a journal holds.
type Kind string

const (
	KindAgents     Kind = "agents"
	KindTeams      Kind = "teams"
	KindRoles      Kind = "roles"
	KindDispatches Kind = "dispatches"
)

// Kinds lists every journal kind in replay order. Teams replay before
// agents so that team references resolve during agent replay.
func Kinds() []Kind {
	return []Kind{KindTeams, KindAgents, KindRoles, KindDispatches}
}

// Journal is an append-only record log for a single entity kind.
type Journal interface {
	// Append durably writes one record. The write is flushed before
	// Append returns; a failed append must leave no partial record
	// visible to a subsequent LoadAll.
	Append(ctx context.Context, rec Record) error

	// LoadAll returns every parseable record in append order, plus the
	// count of malformed records that were skipped. A corrupt record is
	// never fatal to the load.
	LoadAll(ctx context.Context) ([]Record, int, error)

	// Compact rewrites the log to exactly the given records, preserving
	// their order. Used to drop superseded create/delete pairs.
	Compact(ctx context.Context, recs []Record) error

	Close() error
}

// Set bundles one journal per entity kind.
type Set struct {
	Agents     Journal
	Teams      Journal
	Roles      Journal
	Dispatches Journal
}

// ByKind returns the journal for a kind, or nil for an unknown kind.
func (s *Set) ByKind(k Kind) Journal {
	switch k {
	case KindAgents:
		return s.Agents
	case KindTeams:
		return s.Teams
	case KindRoles:
		return s.Roles
	case KindDispatches:
		return s.Dispatches
	}
	return nil
}

// Close closes every journal in the set, returning the first error.
func (s *Set) Close() error {
	var first error
	for _, j := range []Journal{s.Agents, s.Teams, s.Roles, s.Dispatches} {
		if j == nil {
			continue
		}
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
