package layout

import (
	"fmt"
	"strings"

	"cxxlower/internal/types"
)

// Describe renders a layout as indented text for the `layout` command.
func Describe(in *types.Interner, l *ClassLayout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", l.Name)
	if l.HasVBases() {
		fmt.Fprintf(&b, " (complete form %s__Complete)", l.Name)
	}
	b.WriteString("\n")
	for i, name := range l.Order() {
		fmt.Fprintf(&b, "  %2d %s\n", i, name)
	}
	for _, v := range l.VBases {
		how := "direct"
		switch {
		case v.ViaBase >= 0:
			how = "via " + l.Bases[v.ViaBase].Name
		case !v.Direct:
			if vi, ok := in.RecordInfo(v.ViaVBase); ok {
				how = "via virtual " + vi.Name
			}
		}
		fmt.Fprintf(&b, "  virtual %s as %s (%s)\n", v.Name, v.Field, how)
	}
	if l.Vtable != nil {
		b.WriteString("  vtable:\n")
		describeSlots(&b, in, l.Vtable, "    ")
	}
	for _, s := range l.Secondary {
		fmt.Fprintf(&b, "  vtable at %s:\n", s.Path)
		describeSlots(&b, in, s.Vtable, "    ")
	}
	for _, s := range l.Virtual {
		fmt.Fprintf(&b, "  vtable at %s:\n", s.Path)
		describeSlots(&b, in, s.Vtable, "    ")
	}
	return b.String()
}

func describeSlots(b *strings.Builder, in *types.Interner, vt *Vtable, indent string) {
	for i, s := range vt.Slots {
		impl := "?"
		if ri, ok := in.RecordInfo(s.Impl); ok {
			impl = ri.Name
		}
		mark := ""
		if s.Pure {
			mark = " = 0"
		}
		fmt.Fprintf(b, "%s[%d] %s -> %s%s\n", indent, i, s.Sig, impl, mark)
	}
}
