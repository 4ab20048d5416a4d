package fuzztests

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

const (
	maxSeedBytes = 64 << 10
	maxFuzzInput = 256 << 10
)

// seedArchives are the package testdata archives whose .json members make
// the starting corpus.
var seedArchives = []string{
	filepath.Join("..", "frontend", "testdata", "*.txtar"),
	filepath.Join("..", "driver", "testdata", "*.txtar"),
	filepath.Join("..", "lower", "testdata", "*.txtar"),
}

func addDocumentSeeds(f *testing.F) {
	for _, pattern := range seedArchives {
		paths, _ := filepath.Glob(pattern)
		for _, p := range paths {
			ar, err := txtar.ParseFile(p)
			if err != nil {
				continue
			}
			for _, file := range ar.Files {
				if strings.HasSuffix(file.Name, ".json") {
					f.Add(clampSeed(file.Data))
				}
			}
		}
	}
	f.Add([]byte(`{"version":1}`))
	f.Add([]byte(`{"version":1,"types":[{"k":"record","name":"S"}],"decls":[{"id":1,"k":"record","name":"S","type":0,"complete":true}]}`))
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

func clampInput(src []byte) []byte {
	if len(src) > maxFuzzInput {
		return src[:maxFuzzInput]
	}
	return src
}
