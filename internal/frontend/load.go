package frontend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/source"
)

// Options configure how inputs are read.
type Options struct {
	Command *Command
	Filter  *Filter
	Exclude *Excluder
}

// Read loads the raw document for path, running the front end for C++
// sources.
func Read(ctx context.Context, path string, opts Options) (*Doc, error) {
	f := FormatOf(path)
	var data []byte
	var err error
	switch f {
	case FormatUnknown:
		return nil, fmt.Errorf("%s: unknown input extension %q", path, filepath.Ext(path))
	case FormatSource:
		data, err = opts.Command.Run(ctx, path)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Unit == "" {
		doc.Unit = UnitName(path)
	}
	return doc, nil
}

// Load reads, filters and builds one unit. Failures before the unit exists
// are reported against path and returned.
func Load(ctx context.Context, path string, opts Options, rep diag.Reporter) (*ast.Unit, error) {
	doc, err := Read(ctx, path, opts)
	if err == nil {
		doc, err = opts.Filter.Apply(doc)
		if err != nil {
			diag.ReportError(rep, diag.InpFilterError, source.Span{}, fmt.Sprintf("%s: %v", path, err)).Emit()
			return nil, err
		}
	}
	if err != nil {
		code := diag.InpDecodeFailed
		switch FormatOf(path) {
		case FormatSource:
			code = diag.InpFrontendError
		case FormatUnknown:
			code = diag.InpReadFailed
		}
		if os.IsNotExist(err) {
			code = diag.InpReadFailed
		}
		diag.ReportError(rep, code, source.Span{}, err.Error()).Emit()
		return nil, err
	}
	u := Build(doc, rep, opts.Exclude)
	u.Path = path
	return u, nil
}

// UnitName is the file name without its extension.
func UnitName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
