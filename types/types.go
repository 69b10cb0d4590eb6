package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// BlockType tags one variant of the message block union.
type BlockType string

const BlockTypeText BlockType = "text"

// Payload is the structured body of an interactive block. Each block module
// owns exactly one concrete Payload type.
type Payload interface {
	BlockType() BlockType
}

// Block is one text or interactive segment of a parsed assistant message.
type Block struct {
	Type BlockType
	// Content holds the displayable text of a text block, or the raw inner
	// text of an interactive block.
	Content string
	Payload Payload
	Index   int
}

func TextBlock(content string) Block {
	return Block{Type: BlockTypeText, Content: content}
}

func (b Block) IsText() bool {
	return b.Type == BlockTypeText
}

// MarshalJSON encodes text blocks as {"type":"text","content":...} and
// interactive blocks as {"type":<blockType>, ...payload}.
func (b Block) MarshalJSON() ([]byte, error) {
	if b.IsText() {
		return sonic.Marshal(map[string]any{"type": string(b.Type), "content": b.Content})
	}
	out := map[string]any{}
	if b.Payload != nil {
		raw, err := sonic.Marshal(b.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", b.Type, err)
		}
		if err := sonic.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", b.Type, err)
		}
	}
	out["type"] = string(b.Type)
	return sonic.Marshal(out)
}

// ParsedMessage is the ordered block sequence derived from one assistant message.
type ParsedMessage struct {
	MessageID string
	Blocks    []Block
}

func (m ParsedMessage) Interactive() []Block {
	out := make([]Block, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		if !b.IsText() {
			out = append(out, b)
		}
	}
	return out
}

// InstanceKey identifies one occurrence of an interactive block within a
// conversation. It is the only identity used for completion tracking.
type InstanceKey string

func PositionKey(messageID string, index int) InstanceKey {
	return InstanceKey(fmt.Sprintf("%s#%d", messageID, index))
}

func ContentKey(blockType BlockType, inner string) InstanceKey {
	sum := sha1.Sum([]byte(strings.TrimSpace(inner)))
	return InstanceKey(fmt.Sprintf("%s:%s", blockType, hex.EncodeToString(sum[:])[:12]))
}

// KeyFor derives the key of an interactive block. Blocks without a message
// id fall back to the content-derived composite key.
func KeyFor(messageID string, b Block) InstanceKey {
	if strings.TrimSpace(messageID) == "" {
		return ContentKey(b.Type, b.Content)
	}
	return PositionKey(messageID, b.Index)
}

// Action is one user-initiated interaction with a block instance.
type Action struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values,omitempty"`
}

func (a Action) Value(name string) string {
	if a.Values == nil {
		return ""
	}
	return strings.TrimSpace(a.Values[name])
}
