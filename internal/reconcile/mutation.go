package reconcile

import (
	"fmt"
	"strings"

	"github.com/Veraticus/jobsync/internal/model"
)

// Mode selects how much of the two lists is reconciled.
type Mode string

// Reconciliation modes.
const (
	// ModeFull walks the whole overlap of both lists.
	ModeFull Mode = "full"
	// ModeTail only checks the newest record on each side.
	ModeTail Mode = "tail"
)

// ParseMode accepts a mode name or the single-letter prompt answers
// ("r" for refresh, "a" for append).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "r", "refresh":
		return ModeFull, nil
	case "tail", "a", "append":
		return ModeTail, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want full/r or tail/a)", s)
	}
}

// MutationKind is the destination operation a mutation maps to.
type MutationKind string

// Mutation kinds. No-ops are counted in Stats but never materialized.
const (
	KindUpdate MutationKind = "update"
	KindAppend MutationKind = "append"
)

// Mutation is one write the destination must receive.
type Mutation struct {
	Kind MutationKind `json:"kind"`
	// Position is the 1-based data-row position for updates, zero for appends.
	Position int               `json:"position,omitempty"`
	Record   model.Application `json:"record"`
}

// UpdateAt overwrites the data row at position with record.
func UpdateAt(position int, record model.Application) Mutation {
	return Mutation{Kind: KindUpdate, Position: position, Record: record}
}

// AppendNew adds record as a new trailing row.
func AppendNew(record model.Application) Mutation {
	return Mutation{Kind: KindAppend, Record: record}
}

func (m Mutation) String() string {
	switch m.Kind {
	case KindUpdate:
		return fmt.Sprintf("update row %d: %s", m.Position, m.Record.Key())
	case KindAppend:
		return fmt.Sprintf("append: %s", m.Record.Key())
	default:
		return fmt.Sprintf("%s: %s", m.Kind, m.Record.Key())
	}
}

// Stats counts the outcome of every source record the engine classified.
type Stats struct {
	NoOps   int `json:"noops"`
	Updates int `json:"updates"`
	Appends int `json:"appends"`
}

// Plan is the ordered list of mutations for one run.
type Plan struct {
	Mode      Mode       `json:"mode"`
	Mutations []Mutation `json:"mutations"`
	Stats     Stats      `json:"stats"`
}

// Empty reports whether the plan contains no writes.
func (p *Plan) Empty() bool {
	return len(p.Mutations) == 0
}

func (p *Plan) noop() {
	p.Stats.NoOps++
}

func (p *Plan) add(m Mutation) {
	p.Mutations = append(p.Mutations, m)
	switch m.Kind {
	case KindUpdate:
		p.Stats.Updates++
	case KindAppend:
		p.Stats.Appends++
	}
}
