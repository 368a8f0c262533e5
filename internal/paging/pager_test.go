package paging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves a fixed set of pages keyed by marker and counts calls.
type fakeFetcher struct {
	pages map[string]Page[string]
	calls int
}

func (f *fakeFetcher) fetch(_ context.Context, marker string) (Page[string], error) {
	f.calls++
	page, ok := f.pages[marker]
	if !ok {
		return Page[string]{}, errors.New("unknown marker " + marker)
	}
	return page, nil
}

func TestPager_YieldsAllItemsInOrder(t *testing.T) {
	f := &fakeFetcher{pages: map[string]Page[string]{
		"":   {Items: []string{"a", "b"}, NextMarker: "m1"},
		"m1": {Items: []string{"c"}, NextMarker: "m2"},
		"m2": {Items: []string{"d", "e"}, NextMarker: ""},
	}}

	pager := New(f.fetch, "")

	var got []string
	for pager.Next(context.Background()) {
		got = append(got, pager.Item())
	}

	require.NoError(t, pager.Err())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, 3, f.calls, "exactly one fetch per page")

	// Further calls stay terminated and do not refetch.
	assert.False(t, pager.Next(context.Background()))
	assert.Equal(t, 3, f.calls)
}

func TestPager_EmptyFirstPageEndsSequence(t *testing.T) {
	f := &fakeFetcher{pages: map[string]Page[string]{
		"": {Items: nil, NextMarker: ""},
	}}

	pager := New(f.fetch, "")

	assert.False(t, pager.Next(context.Background()))
	require.NoError(t, pager.Err())
	assert.Equal(t, 1, f.calls)
}

func TestPager_EmptyPageWithMarkerContinues(t *testing.T) {
	f := &fakeFetcher{pages: map[string]Page[string]{
		"":   {Items: nil, NextMarker: "m1"},
		"m1": {Items: []string{"x"}, NextMarker: ""},
	}}

	pager := New(f.fetch, "")

	require.True(t, pager.Next(context.Background()))
	assert.Equal(t, "x", pager.Item())
	assert.False(t, pager.Next(context.Background()))
	require.NoError(t, pager.Err())
	assert.Equal(t, 2, f.calls)
}

func TestPager_FetchFailureIsTerminal(t *testing.T) {
	f := &fakeFetcher{pages: map[string]Page[string]{
		"": {Items: []string{"a"}, NextMarker: "bad"},
	}}

	pager := New(f.fetch, "")

	// The first page's item is yielded and remains valid.
	require.True(t, pager.Next(context.Background()))
	assert.Equal(t, "a", pager.Item())

	assert.False(t, pager.Next(context.Background()))
	require.Error(t, pager.Err())

	// The failure is terminal: no further fetches.
	calls := f.calls
	assert.False(t, pager.Next(context.Background()))
	assert.Equal(t, calls, f.calls)
}

func TestPager_ResumeFromMarker(t *testing.T) {
	f := &fakeFetcher{pages: map[string]Page[string]{
		"":   {Items: []string{"a"}, NextMarker: "m1"},
		"m1": {Items: []string{"b"}, NextMarker: ""},
	}}

	// Simulate persisting the marker after the first page and resuming in a
	// new pager, as a process restart would.
	first := New(f.fetch, "")
	require.True(t, first.Next(context.Background()))
	saved := first.Marker()
	assert.Equal(t, "m1", saved)

	resumed := New(f.fetch, saved)
	require.True(t, resumed.Next(context.Background()))
	assert.Equal(t, "b", resumed.Item())
	assert.False(t, resumed.Next(context.Background()))
	require.NoError(t, resumed.Err())
}

func TestPager_NextPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]Page[string]{
		"":   {Items: []string{"a", "b"}, NextMarker: "m1"},
		"m1": {Items: []string{"c"}, NextMarker: ""},
	}}

	pager := New(f.fetch, "")

	p1, ok, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, p1.Items)

	p2, ok, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"c"}, p2.Items)

	_, ok, err = pager.NextPage(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, f.calls)
}
