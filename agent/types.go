package agent

import (
	"errors"

	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/dialogue"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/parser"
	"github.com/tbxark/actionblock/types"
)

var (
	ErrUnknownInstance = errors.New("unknown block instance")
	ErrClosed          = errors.New("flow is closed")
	ErrWrongSurface    = errors.New("operation not available on this surface")
)

// Surface selects who writes the assistant side of a conversation.
type Surface string

const (
	// SurfaceAIChat replies through a dialogue generator after every customer turn.
	SurfaceAIChat Surface = "ai_chat"
	// SurfaceLiveChat receives assistant turns from a human agent.
	SurfaceLiveChat Surface = "live_chat"
)

const (
	DefaultConversation = "default"
	DefaultHistoryLimit = 200
)

type Config struct {
	Surface Surface
	// Conversation routes history access; see WithStateKey.
	Conversation string
	History      HistoryReadWriter
	Records      action.RecordStore
	// Prefs defaults to Records when it also implements action.Preferences.
	Prefs         action.Preferences
	Backend       endpoint.Backend
	Generator     dialogue.Generator
	ParserOptions []parser.Option
}

// RenderedBlock is one block of a message as the front end should draw it.
// Key and View are empty for text blocks.
type RenderedBlock struct {
	Block types.Block
	Key   types.InstanceKey
	View  *types.View
	Used  bool
}

type RenderedMessage struct {
	Message *schema.Message
	ID      string
	Blocks  []RenderedBlock
}

// ActResult reports what a single action did to its instance.
type ActResult struct {
	Key types.InstanceKey
	// Completed is set once the record was written and the summary appended.
	Completed bool
	// Discarded is set when the flow closed while the call was in flight.
	Discarded bool
	Record    *types.Record
	Reply     *schema.Message
}
