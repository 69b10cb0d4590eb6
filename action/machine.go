package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tbxark/actionblock/types"
)

var (
	ErrAnswered = errors.New("block instance already answered")
	ErrInFlight = errors.New("block instance has a call in flight")
)

// Machine tracks the one-shot lifecycle of every block instance:
//
//	unanswered -> in_flight -> answered
//	in_flight  -> unanswered (errored, retry allowed)
//	in_flight  -> in_flight  (held: the call succeeded but its record was lost)
//
// The answered state lives only in the RecordStore; in-flight and error
// state are transient and reset on reload.
type Machine struct {
	store RecordStore

	mu       sync.Mutex
	inFlight map[types.InstanceKey]struct{}
	errs     map[types.InstanceKey]error
}

func NewMachine(store RecordStore) *Machine {
	return &Machine{
		store:    store,
		inFlight: map[types.InstanceKey]struct{}{},
		errs:     map[types.InstanceKey]error{},
	}
}

func (m *Machine) Store() RecordStore {
	return m.store
}

// State reports the current state of an instance and, when answered, its record.
func (m *Machine) State(ctx context.Context, key types.InstanceKey) (types.ActionState, *types.Record, error) {
	rec, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return types.StateUnanswered, nil, fmt.Errorf("load record %s: %w", key, err)
	}
	if ok {
		return types.StateAnswered, rec, nil
	}
	m.mu.Lock()
	_, busy := m.inFlight[key]
	m.mu.Unlock()
	if busy {
		return types.StateInFlight, nil, nil
	}
	return types.StateUnanswered, nil, nil
}

// Begin moves an instance to in_flight. It fails when the instance is
// already answered or already has an outstanding call.
func (m *Machine) Begin(ctx context.Context, key types.InstanceKey) error {
	m.mu.Lock()
	if _, busy := m.inFlight[key]; busy {
		m.mu.Unlock()
		return ErrInFlight
	}
	m.inFlight[key] = struct{}{}
	delete(m.errs, key)
	m.mu.Unlock()

	_, ok, err := m.store.Get(ctx, key)
	if err != nil || ok {
		m.release(key)
		if err != nil {
			return fmt.Errorf("load record %s: %w", key, err)
		}
		return ErrAnswered
	}
	return nil
}

// Complete writes the record and ends the call. A concurrent writer that
// got there first makes this return ErrAnswered. When the write fails the
// instance is held in flight, since the call it records already happened.
func (m *Machine) Complete(ctx context.Context, rec *types.Record) error {
	stored, err := m.store.Put(ctx, rec)
	if err != nil {
		err = fmt.Errorf("store record %s: %w", rec.Key, err)
		m.Hold(rec.Key, err)
		return err
	}
	defer m.release(rec.Key)
	if !stored {
		slog.Debug("Record already present", "key", rec.Key)
		return ErrAnswered
	}
	m.mu.Lock()
	delete(m.errs, rec.Key)
	m.mu.Unlock()
	return nil
}

// Settle ends a call that produced an intermediate step rather than a record.
func (m *Machine) Settle(key types.InstanceKey) {
	m.mu.Lock()
	delete(m.errs, key)
	m.mu.Unlock()
	m.release(key)
}

// Fail ends a call with an error that is shown inline; the instance returns
// to unanswered so the user can retry.
func (m *Machine) Fail(key types.InstanceKey, err error) {
	m.mu.Lock()
	m.errs[key] = err
	m.mu.Unlock()
	m.release(key)
}

// Hold records an error but keeps the instance in flight, so no retry can
// repeat a call whose side effect already landed. Only a reload clears it.
func (m *Machine) Hold(key types.InstanceKey, err error) {
	m.mu.Lock()
	m.inFlight[key] = struct{}{}
	m.errs[key] = err
	m.mu.Unlock()
}

// Abort ends a call whose result arrived after its view went away.
func (m *Machine) Abort(key types.InstanceKey) {
	m.release(key)
}

func (m *Machine) LastError(key types.InstanceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[key]
}

func (m *Machine) release(key types.InstanceKey) {
	m.mu.Lock()
	delete(m.inFlight, key)
	m.mu.Unlock()
}
