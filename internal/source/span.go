package source

import "fmt"

// Span is a location reported by the C++ front end. Line and Col are 1-based;
// a zero Line means the front end had no location for the node.
type Span struct {
	File FileID
	Line uint32
	Col  uint32
}

// NoSpan is used for synthesized nodes.
var NoSpan = Span{}

func (s Span) Valid() bool {
	return s.File != NoFile && s.Line > 0
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d:%d", s.File, s.Line, s.Col)
}

// Less orders spans by file, then line, then column.
func (s Span) Less(o Span) bool {
	if s.File != o.File {
		return s.File < o.File
	}
	if s.Line != o.Line {
		return s.Line < o.Line
	}
	return s.Col < o.Col
}
