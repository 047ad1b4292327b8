package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/apm-collector/internal/storage"
)

// FakeDAO is an in-memory storage.PersistenceDAO with failure injection.
type FakeDAO[T storage.Entity] struct {
	// GetErr and SaveErr, when set, are consulted before each call; a
	// non-nil result fails the call.
	GetErr  func(key string) error
	SaveErr func(key string) error

	// Gate, when set, blocks every Save until it is closed or ctx ends.
	Gate chan struct{}

	mu         sync.Mutex
	entries    map[string]T
	saveCounts map[string]int
	gets       int
}

// NewFakeDAO creates an empty fake.
func NewFakeDAO[T storage.Entity]() *FakeDAO[T] {
	return &FakeDAO[T]{
		entries:    make(map[string]T),
		saveCounts: make(map[string]int),
	}
}

// Seed stores entities without counting them as saves.
func (d *FakeDAO[T]) Seed(entities ...T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entities {
		d.entries[e.Key()] = e
	}
}

func (d *FakeDAO[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	d.mu.Lock()
	d.gets++
	getErr := d.GetErr
	d.mu.Unlock()

	if getErr != nil {
		if err := getErr(key); err != nil {
			return zero, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if !ok {
		return zero, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return e, nil
}

func (d *FakeDAO[T]) Save(ctx context.Context, entity T) error {
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.mu.Lock()
	saveErr := d.SaveErr
	d.mu.Unlock()
	if saveErr != nil {
		if err := saveErr(entity.Key()); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[entity.Key()] = entity
	d.saveCounts[entity.Key()]++
	return nil
}

// SetSaveErr replaces the save failure hook while the DAO is in use.
func (d *FakeDAO[T]) SetSaveErr(fn func(key string) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SaveErr = fn
}

// Entry returns the stored entity for key.
func (d *FakeDAO[T]) Entry(key string) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	return e, ok
}

// Len returns the number of stored entities.
func (d *FakeDAO[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// SaveCount returns how many times key was saved successfully.
func (d *FakeDAO[T]) SaveCount(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveCounts[key]
}

// Gets returns the number of Get calls.
func (d *FakeDAO[T]) Gets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gets
}
