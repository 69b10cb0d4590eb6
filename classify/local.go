package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/tbxark/actionblock/registry"
)

// LocalRecognizer scores every block by keyword hits in the last message.
// The highest score wins; ties go to the block registered first.
type LocalRecognizer struct {
	reg *registry.Registry
}

func NewLocalRecognizer(reg *registry.Registry) *LocalRecognizer {
	return &LocalRecognizer{reg: reg}
}

func (p *LocalRecognizer) Classify(ctx context.Context, req *Request) (string, error) {
	words := tokenize(req.lastContent())
	if len(words) == 0 {
		return NoTag, nil
	}
	best, bestScore := NoTag, 0
	for _, def := range p.reg.All() {
		if len(def.Meta.FlowTags) == 0 {
			continue
		}
		score := 0
		for _, kw := range def.Meta.Keywords {
			if words[strings.ToLower(kw)] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = def.Meta.FlowTags[0], score
		}
	}
	return best, nil
}

func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

type FailbackRecognizer struct {
	recognizers []Recognizer
}

func NewFailbackRecognizer(recognizers ...Recognizer) *FailbackRecognizer {
	return &FailbackRecognizer{recognizers: recognizers}
}

// Classify returns the first tag any recognizer finds. Errors only surface
// when every recognizer failed.
func (p *FailbackRecognizer) Classify(ctx context.Context, req *Request) (string, error) {
	var lastErr error
	failed := 0
	for _, r := range p.recognizers {
		tag, err := r.Classify(ctx, req)
		if err != nil {
			lastErr = err
			failed++
			continue
		}
		if tag != NoTag {
			return tag, nil
		}
	}
	if failed > 0 && failed == len(p.recognizers) {
		return NoTag, fmt.Errorf("all recognizers failed: %w", lastErr)
	}
	return NoTag, nil
}
