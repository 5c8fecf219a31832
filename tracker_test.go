package injector

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	a, b, c := NewToken("A"), NewToken("B"), NewToken("C")

	t.Run("it should return the path innermost first", func(t *testing.T) {
		// GIVEN
		container := &Container{}
		tracker := newResolutionTracker()
		require.NoError(t, tracker.Push(a, container))
		require.NoError(t, tracker.Push(b, container))

		// WHEN
		path := tracker.Path()

		// THEN
		assert.Equal(t, []Token{b, a}, path)
		assert.Equal(t, 2, tracker.Depth())
	})

	t.Run("it should report the closed loop on a repeated pair", func(t *testing.T) {
		// GIVEN
		container := &Container{}
		tracker := newResolutionTracker()
		require.NoError(t, tracker.Push(a, container))
		require.NoError(t, tracker.Push(b, container))
		require.NoError(t, tracker.Push(c, container))

		// WHEN
		err := tracker.Push(b, container)

		// THEN
		assert.ErrorIs(t, err, ErrCyclicDependency)
		assert.Equal(t, []Token{b, c, b}, asError(t, err).Path)
		assert.Equal(t, 3, tracker.Depth())
	})

	t.Run("it should name a delegated token once", func(t *testing.T) {
		// GIVEN
		parent, child := &Container{}, &Container{}
		tracker := newResolutionTracker()
		require.NoError(t, tracker.Push(a, child))

		// WHEN
		err := tracker.Delegate(a, parent)

		// THEN
		require.NoError(t, err)
		assert.Equal(t, []Token{a}, tracker.Path())
	})

	t.Run("it should keep every hop of a token asked again from the parent", func(t *testing.T) {
		// GIVEN
		parent, child := &Container{}, &Container{}
		tracker := newResolutionTracker()
		require.NoError(t, tracker.Push(a, child))

		// WHEN
		err := tracker.Push(a, parent)

		// THEN
		require.NoError(t, err)
		assert.Equal(t, []Token{a, a}, tracker.Path())
	})

	t.Run("it should leave delegated frames out of the loop", func(t *testing.T) {
		// GIVEN
		parent, child := &Container{}, &Container{}
		tracker := newResolutionTracker()
		require.NoError(t, tracker.Push(a, child))
		require.NoError(t, tracker.Delegate(a, parent))
		require.NoError(t, tracker.Push(b, parent))

		// WHEN
		err := tracker.Push(a, parent)

		// THEN
		assert.ErrorIs(t, err, ErrCyclicDependency)
		assert.Equal(t, []Token{a, b, a}, asError(t, err).Path)
	})

	t.Run("it should pop the latest frame", func(t *testing.T) {
		// GIVEN
		container := &Container{}
		tracker := newResolutionTracker()
		require.NoError(t, tracker.Push(a, container))
		require.NoError(t, tracker.Push(b, container))

		// WHEN
		tracker.Pop()

		// THEN
		assert.Equal(t, []Token{a}, tracker.Path())
		assert.Panics(t, func() {
			tracker.Pop()
			tracker.Pop()
		})
	})
}

type closeRecorder struct {
	name   string
	closed *[]string
	err    error
}

func (r *closeRecorder) Close() error {
	*r.closed = append(*r.closed, r.name)
	return r.err
}

var _ io.Closer = (*closeRecorder)(nil)

func TestStore(t *testing.T) {
	t.Run("it should close owned instances in reverse creation order", func(t *testing.T) {
		// GIVEN
		var closed []string
		store := newInstanceStore()
		store.Put(scalarKey(NewToken("first")), &closeRecorder{name: "first", closed: &closed}, true)
		store.Put(scalarKey(NewToken("borrowed")), &closeRecorder{name: "borrowed", closed: &closed}, false)
		store.Put(scalarKey(NewToken("second")), &closeRecorder{name: "second", closed: &closed}, true)

		// WHEN
		err := store.Close()

		// THEN
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first"}, closed)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("it should join close errors", func(t *testing.T) {
		// GIVEN
		var closed []string
		failure := errors.New("cannot close")
		store := newInstanceStore()
		store.Put(scalarKey(NewToken("failing")), &closeRecorder{name: "failing", closed: &closed, err: failure}, true)
		store.Put(scalarKey(NewToken("working")), &closeRecorder{name: "working", closed: &closed}, true)

		// WHEN
		err := store.Close()

		// THEN
		assert.ErrorIs(t, err, failure)
		assert.ErrorContains(t, err, "failed to close component failing")
		assert.Equal(t, []string{"working", "failing"}, closed)
	})

	t.Run("it should keep multi instances apart", func(t *testing.T) {
		// GIVEN
		token := NewToken("plugins")
		first := &ResolvedProvider{Token: token}
		second := &ResolvedProvider{Token: token}
		store := newInstanceStore()
		store.Put(multiKey(first), "first", false)
		store.Put(multiKey(second), "second", false)

		// WHEN
		fromFirst, foundFirst := store.Get(multiKey(first))
		_, foundScalar := store.Get(scalarKey(token))

		// THEN
		assert.True(t, foundFirst)
		assert.Equal(t, "first", fromFirst)
		assert.False(t, foundScalar)
		assert.Len(t, store.Keys(), 2)
	})
}

func TestError(t *testing.T) {
	t.Run("it should render the kind alone without path nor detail", func(t *testing.T) {
		assert.EqualError(t, ErrNoProvider, "NoProvider")
	})

	t.Run("it should render instantiation errors with their cause", func(t *testing.T) {
		// GIVEN
		a, b := NewToken("A"), NewToken("B")
		cause := errors.New("boom")
		err := &Error{Kind: KindInstantiation, Path: []Token{b, a}, Detail: "invoking factory newB", Cause: cause}

		// THEN
		assert.EqualError(t, err, "error during instantiation of B! (A -> B): invoking factory newB:\n\tboom")
		assert.ErrorIs(t, err, ErrInstantiation)
		assert.NotErrorIs(t, err, ErrNoProvider)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("it should render errors built without a path", func(t *testing.T) {
		// GIVEN
		noProvider := &Error{Kind: KindNoProvider, Detail: "engine"}
		instantiation := &Error{Kind: KindInstantiation, Detail: "invoking factory newEngine", Cause: errors.New("boom")}

		// THEN
		assert.EqualError(t, noProvider, "no provider: engine")
		assert.EqualError(t, instantiation, "error during instantiation: invoking factory newEngine:\n\tboom")
	})

	t.Run("it should not match a sentinel carrying a path", func(t *testing.T) {
		// GIVEN
		err := newNoProviderError([]Token{NewToken("A")})
		other := newNoProviderError([]Token{NewToken("B")})

		// THEN
		assert.False(t, errors.Is(err, other))
	})
}
