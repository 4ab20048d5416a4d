package layout

import (
	"fmt"
	"strings"

	"cxxlower/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveBase indicates a record that inherits from itself.
	LayoutErrRecursiveBase LayoutErrorKind = iota + 1
	// LayoutErrIncompleteBase indicates a base class without a definition.
	LayoutErrIncompleteBase
	// LayoutErrDuplicateVBase indicates a virtual base stored more than once.
	LayoutErrDuplicateVBase
	// LayoutErrBaseOrder indicates a base subobject placed after own fields.
	LayoutErrBaseOrder
	// LayoutErrSlotDrift indicates an inherited vtable slot that moved.
	LayoutErrSlotDrift
)

// LayoutError represents a violated layout invariant. It is fatal for the
// unit being lowered.
type LayoutError struct {
	Kind   LayoutErrorKind
	Record types.TypeID
	Name   string
	Cycle  []string // for LayoutErrRecursiveBase
	Other  string   // offending base, virtual base or signature
	Slot   int      // for LayoutErrSlotDrift
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveBase:
		return fmt.Sprintf("record %s inherits from itself (cycle: %s)", e.Name, strings.Join(e.Cycle, " -> "))
	case LayoutErrIncompleteBase:
		return fmt.Sprintf("record %s derives from incomplete %s", e.Name, e.Other)
	case LayoutErrDuplicateVBase:
		return fmt.Sprintf("virtual base %s stored more than once in %s", e.Other, e.Name)
	case LayoutErrBaseOrder:
		return fmt.Sprintf("base %s of %s is not placed before own fields", e.Other, e.Name)
	case LayoutErrSlotDrift:
		return fmt.Sprintf("vtable slot %d of %s (%s) differs from the primary base", e.Slot, e.Name, e.Other)
	default:
		return fmt.Sprintf("layout error kind=%d record %s", e.Kind, e.Name)
	}
}
