package driver

import (
	"crypto/sha256"
	"os"
	"strconv"

	"cxxlower/internal/frontend"
	"cxxlower/internal/version"
)

// unitKey hashes everything that can change the emitted text of one unit:
// the tool and runtime versions, the options and the input bytes. For C++
// sources only the main file is hashed; included headers are not tracked.
func unitKey(path string, opts *Options) (Digest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Digest{}, err
	}
	h := sha256.New()
	field := func(s string) {
		_, _ = h.Write([]byte(strconv.Itoa(len(s))))
		_, _ = h.Write([]byte{':'})
		_, _ = h.Write([]byte(s))
	}
	field(version.Version)
	field(version.RuntimeABI)
	field(frontend.FormatOf(path).String())
	field(strconv.FormatBool(opts.Lower.StubsOnly))
	field(opts.Header)
	field(opts.Frontend.Filter.String())
	field(opts.Frontend.Exclude.String())
	if c := opts.Frontend.Command; c != nil {
		field(c.Path)
		for _, a := range c.Args {
			field(a)
		}
		for _, inc := range c.Includes {
			field(inc)
		}
	}
	_, _ = h.Write(content)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}
