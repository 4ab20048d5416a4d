package fuzztests

import (
	"context"
	"testing"
	"time"

	"cxxlower/internal/diag"
	"cxxlower/internal/emit"
	"cxxlower/internal/frontend"
	"cxxlower/internal/lower"
)

// unitTimeout bounds one document; longer means a loop in build or lower.
const unitTimeout = 5 * time.Second

func FuzzDecodeAndLower(f *testing.F) {
	addDocumentSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		doc, err := frontend.Decode(clampInput(input), frontend.FormatJSON)
		if err != nil {
			return
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			bag := diag.NewBag(128)
			rep := &diag.BagReporter{Bag: bag}
			u := frontend.Build(doc, rep, nil)
			crate, _, err := lower.Lower(context.Background(), u, rep, lower.Options{})
			if err != nil {
				if !bag.HasFatal() {
					t.Errorf("fatal error without a fatal diagnostic: %v", err)
				}
				return
			}
			_, _ = emit.Emit(crate, emit.Options{})
		}()
		select {
		case <-done:
		case <-time.After(unitTimeout):
			t.Fatalf("document took longer than %v", unitTimeout)
		}
	})
}

func FuzzMsgpackDecode(f *testing.F) {
	addDocumentSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		doc, err := frontend.Decode(clampInput(input), frontend.FormatJSON)
		if err != nil {
			// raw bytes are msgpack candidates too
			_, _ = frontend.Decode(clampInput(input), frontend.FormatMsgpack)
			return
		}
		packed, err := frontend.Encode(doc, frontend.FormatMsgpack)
		if err != nil {
			t.Fatalf("encode a decoded document: %v", err)
		}
		if _, err := frontend.Decode(packed, frontend.FormatMsgpack); err != nil {
			t.Fatalf("decode own msgpack: %v", err)
		}
	})
}
