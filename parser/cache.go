package parser

import (
	"sync"

	"github.com/tbxark/actionblock/types"
)

type cacheEntry struct {
	text   string
	parsed types.ParsedMessage
}

// Cache memoizes parses by message id so repeated renders reuse one block
// tree. An entry is replaced when the text behind an id changes, which only
// happens while a reply is still streaming.
type Cache struct {
	parser *Parser

	mu sync.RWMutex
	m  map[string]cacheEntry
}

func NewCache(p *Parser) *Cache {
	return &Cache{parser: p, m: map[string]cacheEntry{}}
}

func (c *Cache) Get(messageID, text string) types.ParsedMessage {
	c.mu.RLock()
	e, ok := c.m[messageID]
	c.mu.RUnlock()
	if ok && e.text == text {
		return e.parsed
	}
	parsed := c.parser.ParseMessage(messageID, text)
	if messageID == "" {
		return parsed
	}
	c.mu.Lock()
	c.m[messageID] = cacheEntry{text: text, parsed: parsed}
	c.mu.Unlock()
	return parsed
}

func (c *Cache) Forget(messageID string) {
	c.mu.Lock()
	delete(c.m, messageID)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
