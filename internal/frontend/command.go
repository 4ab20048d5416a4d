package frontend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs an external front end (a clang plugin or AST dumper) on one
// C++ source. The source path goes last; include directories become -I
// flags before it. The tool must print the JSON document on stdout.
type Command struct {
	Path     string
	Args     []string
	Includes []string
}

var ErrNoFrontend = errors.New("no front-end command configured for C++ sources")

func (c *Command) Run(ctx context.Context, source string) ([]byte, error) {
	if c == nil || c.Path == "" {
		return nil, ErrNoFrontend
	}
	args := append([]string(nil), c.Args...)
	for _, inc := range c.Includes {
		args = append(args, "-I"+inc)
	}
	args = append(args, source)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", c.Path, err)
		}
		return nil, fmt.Errorf("%s: %w: %s", c.Path, err, firstLine(msg))
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
