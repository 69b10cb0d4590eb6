package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/actionblock/types"
)

type notePayload struct {
	Text string `json:"text"`
}

func (notePayload) BlockType() types.BlockType { return "note" }

type nopRenderer struct{}

func (nopRenderer) Render(req *RenderRequest) *types.View {
	return &types.View{Key: req.Key, State: types.StateUnanswered}
}

func (nopRenderer) Submit(ctx context.Context, env *Env, req *RenderRequest, act types.Action) (*Outcome, error) {
	return &Outcome{Result: map[string]string{"ok": "1"}}, nil
}

func def(t types.BlockType, open, close string, tags ...string) Definition {
	return Definition{
		Type:     t,
		Open:     open,
		Close:    close,
		Layout:   LayoutInline,
		Parse:    func(inner string) types.Payload { return notePayload{Text: inner} },
		Renderer: nopRenderer{},
		Meta:     Meta{Label: string(t), FlowTags: tags},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(def("note", "[NOTE]", "[/NOTE]", "show_note")))
	require.NoError(t, r.Register(def("ping", "[PING]", "")))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, types.BlockType("note"), all[0].Type)
	assert.Equal(t, types.BlockType("ping"), all[1].Type)
	assert.True(t, all[1].SelfClosing())

	d, err := r.ByMarker("[/NOTE]")
	require.NoError(t, err)
	assert.Equal(t, types.BlockType("note"), d.Type)

	d, err = r.ByFlowTag("show_note")
	require.NoError(t, err)
	assert.Equal(t, "[NOTE]", d.Open)

	_, err = r.ByType("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"[NOTE]", "[/NOTE]", "[PING]"}, r.Markers())
	assert.Equal(t, []string{"show_note"}, r.FlowTags())
}

func TestRegistry_RejectsCollisions(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(def("note", "[NOTE]", "[/NOTE]", "show_note")))

	err := r.Register(def("note", "[OTHER]", ""))
	assert.ErrorIs(t, err, ErrDuplicateType)

	err = r.Register(def("memo", "[NOTE]", "[/MEMO]"))
	assert.ErrorIs(t, err, ErrDuplicateMarker)

	err = r.Register(def("memo", "[MEMO]", "[/NOTE]"))
	assert.ErrorIs(t, err, ErrDuplicateMarker)

	err = r.Register(def("memo", "[MEMO]", "", "show_note"))
	assert.Error(t, err)

	assert.Len(t, r.All(), 1, "failed registrations leave no trace")
	assert.Panics(t, func() { r.MustRegister(def("memo", "[NOTE]", "")) })
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := New()
	bad := def("", "[X]", "")
	assert.Error(t, r.Register(bad))

	bad = def("text", "[X]", "")
	assert.Error(t, r.Register(bad))

	bad = def("x", " ", "")
	assert.Error(t, r.Register(bad))

	bad = def("x", "[X]", "")
	bad.Parse = nil
	assert.Error(t, r.Register(bad))
}

func TestRegistry_Prompt(t *testing.T) {
	r := New()
	d := def("note", "[NOTE]", "[/NOTE]")
	d.Layout = LayoutJSON
	d.Sample = &notePayload{}
	d.Example = `[NOTE]{"text":"hi"}[/NOTE]`
	d.Meta.Description = "Show a note"
	require.NoError(t, r.Register(d))

	prompt := r.Prompt()
	assert.Contains(t, prompt, "Show a note")
	assert.Contains(t, prompt, `[NOTE]{"text":"hi"}[/NOTE]`)
	assert.Contains(t, prompt, `"text"`)
}
