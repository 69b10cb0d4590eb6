package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/dialogue"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/parser"
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

// Flow drives one conversation: it keeps the transcript, parses every
// assistant message once, renders block instances against the record store
// and turns completed actions into customer turns.
type Flow struct {
	reg       *registry.Registry
	parsed    *parser.Cache
	machine   *action.Machine
	history   HistoryReadWriter
	prefs     action.Preferences
	backend   endpoint.Backend
	generator dialogue.Generator
	surface   Surface
	convKey   string

	mu       sync.Mutex
	messages []*schema.Message
	drafts   map[types.InstanceKey]map[string]string

	closed atomic.Bool
}

func NewFlow(reg *registry.Registry, cfg Config) (*Flow, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Surface == "" {
		cfg.Surface = SurfaceAIChat
	}
	switch cfg.Surface {
	case SurfaceAIChat:
		if cfg.Generator == nil {
			return nil, errors.New("ai chat surface requires a dialogue generator")
		}
	case SurfaceLiveChat:
	default:
		return nil, fmt.Errorf("unknown surface %q", cfg.Surface)
	}
	if cfg.Conversation == "" {
		cfg.Conversation = DefaultConversation
	}
	if cfg.History == nil {
		cfg.History = NewMemoryHistoryStore(KeepSystemLastNTrimmer{N: DefaultHistoryLimit})
	}
	if cfg.Records == nil {
		cfg.Records = action.NewMemoryStore()
	}
	if cfg.Prefs == nil {
		if p, ok := cfg.Records.(action.Preferences); ok {
			cfg.Prefs = p
		} else {
			cfg.Prefs = action.NewMemoryStore()
		}
	}
	return &Flow{
		reg:       reg,
		parsed:    parser.NewCache(parser.New(reg, cfg.ParserOptions...)),
		machine:   action.NewMachine(cfg.Records),
		history:   cfg.History,
		prefs:     cfg.Prefs,
		backend:   cfg.Backend,
		generator: cfg.Generator,
		surface:   cfg.Surface,
		convKey:   cfg.Conversation,
		drafts:    map[types.InstanceKey]map[string]string{},
	}, nil
}

func (f *Flow) Surface() Surface {
	return f.surface
}

func (f *Flow) scope(ctx context.Context) context.Context {
	if _, ok := StateKeyFromContext(ctx); ok {
		return ctx
	}
	return WithStateKey(ctx, f.convKey)
}

// Load rebuilds the transcript from the history store. Answered instances
// come back from the record store on the next Render; drafts and inline
// errors do not survive.
func (f *Flow) Load(ctx context.Context) error {
	ctx = f.scope(ctx)
	hist, err := f.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if ensureIDs(hist) {
		if err := f.history.Save(ctx, hist); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
	}
	f.mu.Lock()
	f.messages = hist
	f.drafts = map[types.InstanceKey]map[string]string{}
	f.mu.Unlock()
	slog.Debug("Loaded conversation", "conversation", f.convKey, "messages", len(hist))
	return nil
}

func (f *Flow) Messages() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*schema.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Parsed returns the block sequence of one message. Only assistant messages
// carry markers; everything else is a single text block.
func (f *Flow) Parsed(msg *schema.Message) types.ParsedMessage {
	id := MessageID(msg)
	if msg == nil {
		return types.ParsedMessage{MessageID: id}
	}
	if msg.Role != schema.Assistant {
		if strings.TrimSpace(msg.Content) == "" {
			return types.ParsedMessage{MessageID: id}
		}
		return types.ParsedMessage{MessageID: id, Blocks: []types.Block{types.TextBlock(msg.Content)}}
	}
	return f.parsed.Get(id, msg.Content)
}

// Render draws every non-system message. It only reads the record store and
// the preferences; no backend call is made.
func (f *Flow) Render(ctx context.Context) ([]RenderedMessage, error) {
	prefs, err := f.loadPrefs(ctx)
	if err != nil {
		return nil, err
	}
	var out []RenderedMessage
	for _, msg := range f.Messages() {
		if msg == nil || msg.Role == schema.System {
			continue
		}
		pm := f.Parsed(msg)
		rm := RenderedMessage{Message: msg, ID: pm.MessageID, Blocks: make([]RenderedBlock, 0, len(pm.Blocks))}
		for _, b := range pm.Blocks {
			if b.IsText() {
				rm.Blocks = append(rm.Blocks, RenderedBlock{Block: b})
				continue
			}
			rb, err := f.renderBlock(ctx, pm.MessageID, b, prefs)
			if err != nil {
				return nil, err
			}
			rm.Blocks = append(rm.Blocks, rb)
		}
		out = append(out, rm)
	}
	return out, nil
}

func (f *Flow) renderBlock(ctx context.Context, messageID string, b types.Block, prefs map[string]string) (RenderedBlock, error) {
	key := types.KeyFor(messageID, b)
	def, err := f.reg.ByType(b.Type)
	if err != nil {
		return RenderedBlock{Block: types.TextBlock(b.Content)}, nil
	}
	state, rec, err := f.machine.State(ctx, key)
	if err != nil {
		return RenderedBlock{}, err
	}
	var stale *types.Record
	if rec != nil && rec.BlockType != b.Type {
		slog.Warn("Record does not match block type", "key", key, "block", b.Type, "record", rec.BlockType)
		stale, rec = rec, nil
	}
	req := &registry.RenderRequest{
		Key:     key,
		Payload: b.Payload,
		Record:  rec,
		Draft:   f.draft(key),
		Prefs:   prefs,
	}
	view := safeRender(def, req)
	if stale != nil {
		view.Body = stale.Summary
	}
	view.Key = key
	view.BlockType = def.Type
	view.State = state
	switch state {
	case types.StateAnswered:
		view.Controls = nil
	case types.StateInFlight:
		view.DisableControls()
		if lastErr := f.machine.LastError(key); lastErr != nil {
			view.Error = types.UserMessageOf(lastErr)
		}
	default:
		if lastErr := f.machine.LastError(key); lastErr != nil {
			view.Error = types.UserMessageOf(lastErr)
		}
	}
	return RenderedBlock{Block: b, Key: key, View: view, Used: state == types.StateAnswered}, nil
}

func safeRender(def *registry.Definition, req *registry.RenderRequest) (view *types.View) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Renderer panicked", "type", def.Type, "key", req.Key, "panic", r)
			view = &types.View{Title: def.Meta.Label, Body: "This item cannot be shown."}
		}
	}()
	view = def.Renderer.Render(req)
	if view == nil {
		view = &types.View{Title: def.Meta.Label}
	}
	return view
}

// UsedKeys lists the answered instances of the transcript in display order.
func (f *Flow) UsedKeys(ctx context.Context) ([]types.InstanceKey, error) {
	var used []types.InstanceKey
	for _, msg := range f.Messages() {
		if msg == nil || msg.Role != schema.Assistant {
			continue
		}
		pm := f.Parsed(msg)
		for _, b := range pm.Interactive() {
			key := types.KeyFor(pm.MessageID, b)
			state, _, err := f.machine.State(ctx, key)
			if err != nil {
				return nil, err
			}
			if state == types.StateAnswered {
				used = append(used, key)
			}
		}
	}
	return used, nil
}

// Act performs one user action on a block instance. At most one call per
// instance is outstanding, and a completed instance never accepts another
// action. A result that arrives after Close is dropped without error.
func (f *Flow) Act(ctx context.Context, key types.InstanceKey, act types.Action) (*ActResult, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "ActionBlock", "Flow")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"key":     string(key),
		"action":  act.Name,
		"surface": string(f.surface),
	})

	defer func() {
		if r := recover(); r != nil {
			callbacks.OnError(ctx, fmt.Errorf("panic in Flow.Act: %v", r))
			panic(r)
		}
	}()

	result, err := f.act(ctx, key, act)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"key":       string(key),
		"completed": result.Completed,
		"discarded": result.Discarded,
	})
	return result, nil
}

func (f *Flow) act(ctx context.Context, key types.InstanceKey, act types.Action) (*ActResult, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	def, block, err := f.lookup(key)
	if err != nil {
		return nil, err
	}
	prefs, err := f.loadPrefs(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.machine.Begin(ctx, key); err != nil {
		return nil, err
	}

	req := &registry.RenderRequest{
		Key:     key,
		Payload: block.Payload,
		Draft:   f.draft(key),
		Prefs:   prefs,
	}
	env := &registry.Env{Backend: f.backend, Records: f.machine.Store(), Prefs: f.prefs}
	out, err := safeSubmit(ctx, def, env, req, act)

	if f.closed.Load() {
		f.machine.Abort(key)
		slog.Debug("Discarded result after close", "key", key, "action", act.Name)
		return &ActResult{Key: key, Discarded: true}, nil
	}
	if err != nil {
		f.machine.Fail(key, err)
		slog.Debug("Action failed", "key", key, "action", act.Name, "error", err)
		return nil, err
	}
	f.savePrefs(ctx, out.Prefs)

	if !out.Completes() {
		f.mergeDraft(key, out.Draft)
		f.machine.Settle(key)
		return &ActResult{Key: key}, nil
	}

	rec, err := types.NewRecord(key, def.Type, out.Result, out.Summary)
	if err != nil {
		// The submit already ran; a retry could repeat its side effect.
		f.machine.Hold(key, err)
		slog.Error("Failed to build record", "key", key, "type", def.Type, "error", err)
		return nil, err
	}
	if err := f.machine.Complete(ctx, rec); err != nil {
		return nil, err
	}
	f.clearDraft(key)
	slog.Debug("Completed block", "key", key, "type", def.Type)

	result := &ActResult{Key: key, Completed: true, Record: rec}
	if _, err := f.append(ctx, NewMessage(schema.User, rec.Summary)); err != nil {
		return nil, fmt.Errorf("append summary: %w", err)
	}
	if f.surface == SurfaceAIChat {
		reply, err := f.Reply(ctx)
		if err != nil {
			// The record stands; the reply can be requested again.
			slog.Warn("Failed to generate reply", "key", key, "error", err)
			return result, nil
		}
		result.Reply = reply
	}
	return result, nil
}

func safeSubmit(ctx context.Context, def *registry.Definition, env *registry.Env, req *registry.RenderRequest, act types.Action) (out *registry.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Submit panicked", "type", def.Type, "key", req.Key, "panic", r)
			out, err = nil, fmt.Errorf("%s %s: %v", def.Type, act.Name, r)
		}
	}()
	out, err = def.Renderer.Submit(ctx, env, req, act)
	if err == nil && out == nil {
		out = &registry.Outcome{}
	}
	return out, err
}

func (f *Flow) lookup(key types.InstanceKey) (*registry.Definition, types.Block, error) {
	for _, msg := range f.Messages() {
		if msg == nil || msg.Role != schema.Assistant {
			continue
		}
		pm := f.Parsed(msg)
		for _, b := range pm.Interactive() {
			if types.KeyFor(pm.MessageID, b) != key {
				continue
			}
			def, err := f.reg.ByType(b.Type)
			if err != nil {
				return nil, types.Block{}, err
			}
			return def, b, nil
		}
	}
	return nil, types.Block{}, fmt.Errorf("%w: %s", ErrUnknownInstance, key)
}

// SendCustomer appends a customer turn. On the AI surface the assistant reply
// is generated and returned.
func (f *Flow) SendCustomer(ctx context.Context, text string) (*schema.Message, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if _, err := f.append(ctx, NewMessage(schema.User, text)); err != nil {
		return nil, err
	}
	if f.surface != SurfaceAIChat {
		return nil, nil
	}
	return f.Reply(ctx)
}

// ReceiveAgent appends a turn written by a human agent on the live chat
// surface. It may contain block markers like any assistant message.
func (f *Flow) ReceiveAgent(ctx context.Context, text string) (*schema.Message, error) {
	if f.surface != SurfaceLiveChat {
		return nil, ErrWrongSurface
	}
	if f.closed.Load() {
		return nil, ErrClosed
	}
	msg := NewMessage(schema.Assistant, text)
	if _, err := f.append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Reply generates the next assistant turn and appends it.
func (f *Flow) Reply(ctx context.Context) (*schema.Message, error) {
	if f.surface != SurfaceAIChat {
		return nil, ErrWrongSurface
	}
	req, err := f.dialogueRequest(ctx)
	if err != nil {
		return nil, err
	}
	text, err := f.generator.GenerateDialogue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate dialogue: %w", err)
	}
	if f.closed.Load() {
		return nil, ErrClosed
	}
	msg := NewMessage(schema.Assistant, text)
	if _, err := f.append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// StreamReply generates the next assistant turn incrementally. onPartial sees
// the parse of the text received so far; an unfinished marker shows up as
// trailing text until its close arrives.
func (f *Flow) StreamReply(ctx context.Context, onPartial func(types.ParsedMessage)) (*schema.Message, error) {
	if f.surface != SurfaceAIChat {
		return nil, ErrWrongSurface
	}
	req, err := f.dialogueRequest(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := f.generator.GenerateDialogueStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate dialogue stream: %w", err)
	}
	defer stream.Close()

	msg := NewMessage(schema.Assistant, "")
	id := MessageID(msg)
	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("receive dialogue chunk: %w", err)
		}
		if f.closed.Load() {
			return nil, ErrClosed
		}
		sb.WriteString(chunk)
		if onPartial != nil {
			onPartial(f.parsed.Get(id, sb.String()))
		}
	}
	msg.Content = sb.String()
	if _, err := f.append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (f *Flow) dialogueRequest(ctx context.Context) (*dialogue.Request, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	lang, _, err := f.prefs.GetPreference(ctx, action.PrefPreferredLanguage)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return &dialogue.Request{Messages: f.Messages(), Language: lang}, nil
}

// Close marks the flow gone. Calls still in flight finish but their results
// are discarded.
func (f *Flow) Close() {
	if f.closed.CompareAndSwap(false, true) {
		slog.Debug("Closed conversation", "conversation", f.convKey)
	}
}

func (f *Flow) Closed() bool {
	return f.closed.Load()
}

func (f *Flow) append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error) {
	hist, err := f.history.Append(f.scope(ctx), msgs...)
	if err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	f.mu.Lock()
	f.messages = hist
	f.mu.Unlock()
	return hist, nil
}

func (f *Flow) loadPrefs(ctx context.Context) (map[string]string, error) {
	prefs := map[string]string{}
	for _, name := range []string{action.PrefVerifiedPhone, action.PrefPreferredLanguage} {
		v, ok, err := f.prefs.GetPreference(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load preference %s: %w", name, err)
		}
		if ok {
			prefs[name] = v
		}
	}
	return prefs, nil
}

func (f *Flow) savePrefs(ctx context.Context, prefs map[string]string) {
	for name, value := range prefs {
		if err := f.prefs.SetPreference(ctx, name, value); err != nil {
			slog.Warn("Failed to save preference", "name", name, "error", err)
		}
	}
}

func (f *Flow) draft(key types.InstanceKey) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.drafts[key]))
	for k, v := range f.drafts[key] {
		out[k] = v
	}
	return out
}

func (f *Flow) mergeDraft(key types.InstanceKey, draft map[string]string) {
	if len(draft) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.drafts[key]
	if d == nil {
		d = map[string]string{}
		f.drafts[key] = d
	}
	for k, v := range draft {
		d[k] = v
	}
}

func (f *Flow) clearDraft(key types.InstanceKey) {
	f.mu.Lock()
	delete(f.drafts, key)
	f.mu.Unlock()
}
