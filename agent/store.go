package agent

import (
	"context"
	"errors"
)

var ErrNoStateKey = errors.New("no conversation key in context")

type stateKeyContext struct{}

// WithStateKey routes store access to one conversation.
func WithStateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, stateKeyContext{}, key)
}

// StateKeyFromContext gets the routing key from the context.
func StateKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(stateKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok && key != ""
}

// Store binds a Cache to the conversation key carried by the context.
type Store[S any] struct {
	core      Cache[S]
	namespace string
	keyFn     func(ctx context.Context) (string, bool)
}

func NewStore[S any](core Cache[S], namespace string, keyFn func(ctx context.Context) (string, bool)) Store[S] {
	return Store[S]{
		core:      core,
		namespace: namespace,
		keyFn:     keyFn,
	}
}

func (c Store[S]) key(ctx context.Context) (string, error) {
	key, exist := c.keyFn(ctx)
	if !exist {
		return "", ErrNoStateKey
	}
	return c.namespace + ":" + key, nil
}

func (c Store[S]) Set(ctx context.Context, val S) error {
	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	return c.core.Set(ctx, key, val)
}

func (c Store[S]) Get(ctx context.Context) (S, bool, error) {
	key, err := c.key(ctx)
	if err != nil {
		var zero S
		return zero, false, err
	}
	return c.core.Get(ctx, key)
}

func (c Store[S]) Del(ctx context.Context) error {
	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	return c.core.Del(ctx, key)
}

func (c Store[S]) Exists(ctx context.Context) (bool, error) {
	key, err := c.key(ctx)
	if err != nil {
		return false, err
	}
	return c.core.Exists(ctx, key)
}
