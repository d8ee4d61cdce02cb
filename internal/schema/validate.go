package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidCatalog is wrapped by every validation failure.
var ErrInvalidCatalog = errors.New("schema: invalid catalog")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

// Validate checks step ordering: every reference points at a table created
// earlier, exactly one deferred alter step exists and is the last
// table-affecting step, and indexes follow all table-affecting steps.
func (c Catalog) Validate() error {
	if len(c.Steps) == 0 {
		return invalid("no steps")
	}
	labels := make(map[string]int, len(c.Steps))
	created := map[string]int{}
	deferred := -1
	lastTable := -1
	firstIndex := -1

	for i, s := range c.Steps {
		if s.Label == "" {
			return invalid("step %d has no label", i)
		}
		if prev, ok := labels[s.Label]; ok {
			return invalid("label %q repeats at steps %d and %d", s.Label, prev, i)
		}
		labels[s.Label] = i
		if s.SQL == "" {
			return invalid("step %q has no statement", s.Label)
		}

		switch s.Kind {
		case CreateTable:
			if _, ok := created[s.Table]; ok {
				return invalid("table %s created twice (step %q)", s.Table, s.Label)
			}
			if s.Deferred {
				return invalid("create step %q cannot be deferred", s.Label)
			}
			for _, ref := range s.References {
				if _, ok := created[ref]; !ok {
					return invalid("step %q references %s before it is created", s.Label, ref)
				}
			}
			created[s.Table] = i
			lastTable = i
		case AlterTable:
			if _, ok := created[s.Table]; !ok {
				return invalid("step %q alters %s before it is created", s.Label, s.Table)
			}
			for _, ref := range s.References {
				if _, ok := created[ref]; !ok {
					return invalid("step %q references %s before it is created", s.Label, ref)
				}
			}
			if s.Deferred {
				if deferred >= 0 {
					return invalid("more than one deferred step (%q and %q)", c.Steps[deferred].Label, s.Label)
				}
				deferred = i
			}
			lastTable = i
		case CreateIndex:
			if _, ok := created[s.Table]; !ok {
				return invalid("index step %q targets %s before it is created", s.Label, s.Table)
			}
			if firstIndex < 0 {
				firstIndex = i
			}
		default:
			return invalid("step %q has unknown kind %q", s.Label, s.Kind)
		}
	}

	if deferred < 0 {
		return invalid("no deferred step closes the circular reference")
	}
	if deferred != lastTable {
		return invalid("deferred step %q is followed by table step %q", c.Steps[deferred].Label, c.Steps[lastTable].Label)
	}
	if firstIndex >= 0 && firstIndex < lastTable {
		return invalid("index step %q precedes table step %q", c.Steps[firstIndex].Label, c.Steps[lastTable].Label)
	}
	return nil
}
