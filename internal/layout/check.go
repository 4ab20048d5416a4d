package layout

// Check verifies the invariants every lowered layout must hold: the vptr
// and base subobjects precede own fields, each virtual base is stored once,
// and inherited vtable slots keep their index in every derived table.
func Check(l *ClassLayout) *LayoutError {
	if l == nil {
		return nil
	}
	order := l.Order()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		if _, dup := pos[name]; dup {
			return &LayoutError{Kind: LayoutErrBaseOrder, Record: l.Record, Name: l.Name, Other: name}
		}
		pos[name] = i
	}
	if l.OwnVPtr && pos["__vptr"] != 0 {
		return &LayoutError{Kind: LayoutErrBaseOrder, Record: l.Record, Name: l.Name, Other: "__vptr"}
	}
	firstField := len(order)
	if len(l.Fields) > 0 {
		firstField = pos[l.Fields[0].Name]
	}
	for _, b := range l.Bases {
		if pos[b.Field] > firstField {
			return &LayoutError{Kind: LayoutErrBaseOrder, Record: l.Record, Name: l.Name, Other: b.Name}
		}
	}

	seen := make(map[string]bool, len(l.VBases))
	for _, v := range l.VBases {
		if seen[v.Key] {
			return &LayoutError{Kind: LayoutErrDuplicateVBase, Record: l.Record, Name: l.Name, Other: v.Name}
		}
		seen[v.Key] = true
	}

	if l.Primary >= 0 {
		if err := sameSlots(l, l.Bases[l.Primary].Layout.Vtable, l.Vtable); err != nil {
			return err
		}
	}
	for _, s := range l.Secondary {
		if err := sameSlots(l, s.baseVtable(l), s.Vtable); err != nil {
			return err
		}
	}
	return nil
}

// sameSlots reports the first slot of base that moved or vanished in derived.
func sameSlots(l *ClassLayout, base, derived *Vtable) *LayoutError {
	if base == nil {
		return nil
	}
	for i, s := range base.Slots {
		if derived == nil || i >= len(derived.Slots) || derived.Slots[i].Sig != s.Sig {
			return &LayoutError{Kind: LayoutErrSlotDrift, Record: l.Record, Name: l.Name, Other: s.Sig, Slot: i}
		}
	}
	return nil
}

// baseVtable finds the unresolved table of the subobject's own type.
func (s Subobject) baseVtable(l *ClassLayout) *Vtable {
	cur := l
	for _, step := range s.Path {
		var next *ClassLayout
		for _, b := range cur.Bases {
			if b.Field == step.Field {
				next = b.Layout
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur.Vtable
}
