package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/types"
)

var (
	ErrNotFound        = errors.New("block definition not found")
	ErrDuplicateType   = errors.New("duplicate block type")
	ErrDuplicateMarker = errors.New("duplicate marker literal")
)

// Layout describes the shape of the text between a block's markers. The
// normalizer uses it to decide which whitespace is a generator artifact.
type Layout int

const (
	LayoutNone Layout = iota
	LayoutInline
	LayoutLines
	LayoutJSON
)

// Meta is author-facing metadata shown by the flow-authoring surface.
type Meta struct {
	Label       string
	Icon        string
	Description string
	Preview     string
	// FlowTags are the flow-classification tags an authored step can carry.
	FlowTags []string
	// Keywords drive local step classification.
	Keywords []string
}

// Env is what a renderer may use while handling an action.
type Env struct {
	Backend endpoint.Backend
	Records action.RecordStore
	Prefs   action.Preferences
}

// RenderRequest carries everything needed to draw one block instance.
type RenderRequest struct {
	Key     types.InstanceKey
	Payload types.Payload
	// Record is set once the instance is answered.
	Record *types.Record
	// Draft holds transient progress of a multi-step block.
	Draft map[string]string
	Prefs map[string]string
}

// Outcome is the result of a successful Submit. Either Result is set and the
// instance completes with Summary as the customer turn, or Draft carries an
// intermediate step and the instance stays unanswered.
type Outcome struct {
	Result  any
	Summary string
	Draft   map[string]string
	Prefs   map[string]string
}

func (o *Outcome) Completes() bool {
	return o != nil && o.Result != nil
}

// Renderer is the per-type rendering and action capability.
type Renderer interface {
	Render(req *RenderRequest) *types.View
	Submit(ctx context.Context, env *Env, req *RenderRequest, act types.Action) (*Outcome, error)
}

// Definition registers one block type.
type Definition struct {
	Type  types.BlockType
	Open  string
	Close string
	// Layout of the body. Ignored for self-closing blocks.
	Layout Layout
	// Parse turns the inner text into a payload. It must never fail.
	Parse     func(inner string) types.Payload
	Renderer  Renderer
	Endpoints []endpoint.Descriptor
	Meta      Meta
	// Example is a marker snippet for the assistant catalog.
	Example string
	// Sample, when set, is reflected into a JSON schema for the catalog.
	Sample any
}

func (d *Definition) SelfClosing() bool {
	return d.Close == ""
}

func (d *Definition) validate() error {
	if d.Type == "" || d.Type == types.BlockTypeText {
		return fmt.Errorf("invalid block type %q", d.Type)
	}
	if strings.TrimSpace(d.Open) == "" {
		return fmt.Errorf("block %s: empty opening marker", d.Type)
	}
	if d.Open == d.Close {
		return fmt.Errorf("block %s: opening and closing markers are equal", d.Type)
	}
	if d.Parse == nil {
		return fmt.Errorf("block %s: missing content parser", d.Type)
	}
	if d.Renderer == nil {
		return fmt.Errorf("block %s: missing renderer", d.Type)
	}
	return nil
}

// Registry is the static table of block definitions. It is built once at
// startup and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	defs     []*Definition
	byType   map[types.BlockType]*Definition
	byMarker map[string]*Definition
	byTag    map[string]*Definition
}

func New() *Registry {
	return &Registry{
		byType:   map[types.BlockType]*Definition{},
		byMarker: map[string]*Definition{},
		byTag:    map[string]*Definition{},
	}
}

// Register adds a definition. Any marker literal already claimed by another
// definition, as opening or closing marker, is rejected.
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byType[def.Type]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, def.Type)
	}
	markers := []string{def.Open}
	if !def.SelfClosing() {
		markers = append(markers, def.Close)
	}
	for _, m := range markers {
		if other, ok := r.byMarker[m]; ok {
			return fmt.Errorf("%w: %s used by %s and %s", ErrDuplicateMarker, m, other.Type, def.Type)
		}
	}
	for _, tag := range def.Meta.FlowTags {
		if other, ok := r.byTag[tag]; ok {
			return fmt.Errorf("flow tag %q used by %s and %s", tag, other.Type, def.Type)
		}
	}

	d := def
	r.defs = append(r.defs, &d)
	r.byType[d.Type] = &d
	for _, m := range markers {
		r.byMarker[m] = &d
	}
	for _, tag := range d.Meta.FlowTags {
		r.byTag[tag] = &d
	}
	return nil
}

func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// All returns the definitions in registration order.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) ByType(t types.BlockType) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, t)
	}
	return d, nil
}

// ByMarker resolves an opening or closing marker literal.
func (r *Registry) ByMarker(marker string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byMarker[marker]
	if !ok {
		return nil, fmt.Errorf("%w: marker %s", ErrNotFound, marker)
	}
	return d, nil
}

// ByFlowTag resolves the block an authored flow step will render.
func (r *Registry) ByFlowTag(tag string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byTag[strings.TrimSpace(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: flow tag %s", ErrNotFound, tag)
	}
	return d, nil
}

// FlowTags lists every flow tag in registration order.
func (r *Registry) FlowTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, d := range r.defs {
		out = append(out, d.Meta.FlowTags...)
	}
	return out
}

// Markers lists every marker literal, opening and closing.
func (r *Registry) Markers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byMarker))
	for _, d := range r.defs {
		out = append(out, d.Open)
		if !d.SelfClosing() {
			out = append(out, d.Close)
		}
	}
	return out
}
