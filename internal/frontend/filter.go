package frontend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// Filter is a jq program applied to the document before it is built, for
// example to drop declarations the front end should not have emitted:
//
//	.decls |= map(select(.name | startswith("test_") | not))
//
// The program must yield exactly one document.
type Filter struct {
	src   string
	query *gojq.Query
}

func NewFilter(program string) (*Filter, error) {
	if program == "" {
		return nil, nil
	}
	q, err := gojq.Parse(program)
	if err != nil {
		return nil, fmt.Errorf("jq filter: %w", err)
	}
	return &Filter{src: program, query: q}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.src
}

var errFilterArity = errors.New("jq filter must produce exactly one document")

// Apply runs the program over doc. gojq works on generic JSON values, so
// the document goes through encoding/json on both sides.
func (f *Filter) Apply(doc *Doc) (*Doc, error) {
	if f == nil {
		return doc, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var in any
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	iter := f.query.Run(in)
	var out any
	n := 0
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq filter: %w", err)
		}
		out = v
		n++
	}
	if n != 1 {
		return nil, fmt.Errorf("%w (got %d)", errFilterArity, n)
	}
	raw, err = json.Marshal(out)
	if err != nil {
		return nil, err
	}
	res := &Doc{}
	if err := json.Unmarshal(raw, res); err != nil {
		return nil, fmt.Errorf("jq filter result: %w", err)
	}
	if res.Version != WireVersion {
		return nil, fmt.Errorf("jq filter result: %w %d", ErrVersion, res.Version)
	}
	return res, nil
}
