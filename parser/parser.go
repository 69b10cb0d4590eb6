package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

// Parser turns raw assistant text into an ordered block sequence. It is
// deterministic and total: every input yields a valid result, and the worst
// case is a single text block holding the input.
type Parser struct {
	reg             *registry.Registry
	repairThreshold int
}

type Option func(*Parser)

func WithRepairThreshold(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.repairThreshold = n
		}
	}
}

func New(reg *registry.Registry, opts ...Option) *Parser {
	p := &Parser{reg: reg, repairThreshold: DefaultRepairThreshold}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Parse is a convenience wrapper using the default options.
func Parse(reg *registry.Registry, text string) []types.Block {
	return New(reg).Parse(text)
}

// ParseMessage is Parse for a message with an id, using the default options.
func ParseMessage(reg *registry.Registry, messageID, text string) types.ParsedMessage {
	return New(reg).ParseMessage(messageID, text)
}

func (p *Parser) ParseMessage(messageID, text string) types.ParsedMessage {
	return types.ParsedMessage{MessageID: messageID, Blocks: p.Parse(text)}
}

type piece struct {
	block types.Block
	text  bool
}

func (p *Parser) Parse(text string) (blocks []types.Block) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Parser panic, degrading to text", "panic", fmt.Sprint(r))
			blocks = fallback(text)
		}
	}()
	if text == "" {
		return []types.Block{}
	}
	normalized := Normalize(p.reg, text, p.repairThreshold)
	pieces := p.tokenize(normalized)
	return finalize(pieces, p.reg.Markers())
}

func (p *Parser) tokenize(text string) []piece {
	defs := p.reg.All()
	var pieces []piece
	rest := text
	for rest != "" {
		def, idx := earliest(defs, rest)
		if def == nil {
			pieces = append(pieces, piece{block: types.TextBlock(rest), text: true})
			break
		}
		if idx > 0 {
			pieces = append(pieces, piece{block: types.TextBlock(rest[:idx]), text: true})
		}
		after := rest[idx+len(def.Open):]
		if def.SelfClosing() {
			pieces = append(pieces, p.blockPiece(def, "", rest[idx:idx+len(def.Open)]))
			rest = after
			continue
		}
		end := strings.Index(after, def.Close)
		if end < 0 {
			// generation was cut off before the closing marker
			pieces = append(pieces, piece{block: types.TextBlock(rest[idx:]), text: true})
			break
		}
		inner := after[:end]
		raw := rest[idx : idx+len(def.Open)+end+len(def.Close)]
		pieces = append(pieces, p.blockPiece(def, inner, raw))
		rest = after[end+len(def.Close):]
	}
	return pieces
}

// earliest finds the first marker occurrence; ties go to the definition
// registered first.
func earliest(defs []*registry.Definition, text string) (*registry.Definition, int) {
	var (
		found *registry.Definition
		best  = -1
	)
	for _, d := range defs {
		idx := strings.Index(text, d.Open)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			found, best = d, idx
		}
	}
	return found, best
}

func (p *Parser) blockPiece(def *registry.Definition, inner, raw string) piece {
	payload, ok := safeParse(def, inner)
	if !ok {
		return piece{block: types.TextBlock(raw), text: true}
	}
	return piece{block: types.Block{Type: def.Type, Content: inner, Payload: payload}}
}

func safeParse(def *registry.Definition, inner string) (payload types.Payload, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Content parser panicked", "type", def.Type, "panic", fmt.Sprint(r))
			payload, ok = nil, false
		}
	}()
	return def.Parse(inner), true
}

// finalize trims text on the sides that touch an interactive block, drops
// text that holds nothing but whitespace and marker literals, and numbers
// the surviving blocks.
func finalize(pieces []piece, markers []string) []types.Block {
	out := make([]types.Block, 0, len(pieces))
	for i, pc := range pieces {
		b := pc.block
		if pc.text {
			if i > 0 && !pieces[i-1].text {
				b.Content = strings.TrimLeft(b.Content, " \t\r\n")
			}
			if i+1 < len(pieces) && !pieces[i+1].text {
				b.Content = strings.TrimRight(b.Content, " \t\r\n")
			}
			if isResidue(b.Content, markers) {
				continue
			}
		}
		b.Index = len(out)
		out = append(out, b)
	}
	return out
}

func isResidue(s string, markers []string) bool {
	for _, m := range markers {
		s = strings.ReplaceAll(s, m, "")
	}
	return strings.TrimSpace(s) == ""
}

func fallback(text string) []types.Block {
	if strings.TrimSpace(text) == "" {
		return []types.Block{}
	}
	return []types.Block{types.TextBlock(text)}
}
