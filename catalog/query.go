package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mwantia/dircount/backend"
	"github.com/mwantia/dircount/data"
	"golang.org/x/sync/errgroup"
)

// Stat returns the entry for key.
func (c *Catalog) Stat(ctx context.Context, key string) (*data.Metadata, error) {
	key, err := data.CleanKey(key)
	if err != nil {
		return nil, err
	}

	var meta *data.Metadata
	err = backend.View(ctx, c.backend, func(tx backend.Tx) error {
		meta, err = tx.ReadMeta(ctx, key)
		return err
	})
	return meta, err
}

// List returns all entries whose key starts with prefix.
func (c *Catalog) List(ctx context.Context, prefix string) ([]*data.Metadata, error) {
	var metas []*data.Metadata
	err := backend.View(ctx, c.backend, func(tx backend.Tx) (err error) {
		metas, err = tx.ListMeta(ctx, prefix)
		return err
	})
	return metas, err
}

// Count returns the number of live members of directory key. A directory
// without a counter has no members.
func (c *Catalog) Count(ctx context.Context, key string) (int64, error) {
	key, err := data.CleanKey(key)
	if err != nil {
		return 0, err
	}

	var count int64
	err = backend.View(ctx, c.backend, func(tx backend.Tx) error {
		counter, err := tx.ReadCounter(ctx, key)
		if errors.Is(err, data.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		count = counter.Count
		return nil
	})
	return count, err
}

// Counts returns all counters whose key starts with prefix.
func (c *Catalog) Counts(ctx context.Context, prefix string) ([]*data.Counter, error) {
	var counters []*data.Counter
	err := backend.View(ctx, c.backend, func(tx backend.Tx) (err error) {
		counters, err = tx.ListCounters(ctx, prefix)
		return err
	})
	return counters, err
}

// Bindings returns all hook bindings.
func (c *Catalog) Bindings(ctx context.Context) ([]*data.Binding, error) {
	var bindings []*data.Binding
	err := backend.View(ctx, c.backend, func(tx backend.Tx) (err error) {
		bindings, err = tx.ListBindings(ctx)
		return err
	})
	return bindings, err
}

// Mismatch is a directory whose stored counter differs from its members.
type Mismatch struct {
	Key      string `json:"key"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %d, counted %d", m.Key, m.Expected, m.Actual)
}

// Verify recounts all members from the metadata table and compares them with
// the stored counters. Results are only exact while no writer is active.
func (c *Catalog) Verify(ctx context.Context) ([]Mismatch, error) {
	var metas []*data.Metadata
	var counters []*data.Counter

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		metas, err = c.List(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		counters, err = c.Counts(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to verify counters: %w", err)
	}

	expected := make(map[string]int64)
	for _, meta := range metas {
		expected[data.ParentKey(meta.Key)]++
	}

	var mismatches []Mismatch
	for _, counter := range counters {
		if want := expected[counter.Key]; want != counter.Count {
			mismatches = append(mismatches, Mismatch{Key: counter.Key, Expected: want, Actual: counter.Count})
		}
		delete(expected, counter.Key)
	}
	for key, want := range expected {
		mismatches = append(mismatches, Mismatch{Key: key, Expected: want})
	}

	sortMismatches(mismatches)
	if len(mismatches) > 0 {
		c.log.Warn("Found %d counter mismatches", len(mismatches))
	}
	return mismatches, nil
}

func sortMismatches(mismatches []Mismatch) {
	slices.SortFunc(mismatches, func(a, b Mismatch) int {
		return strings.Compare(a.Key, b.Key)
	})
}
