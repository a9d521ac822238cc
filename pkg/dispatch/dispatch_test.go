package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireInvokesRegisteredHandlerOnce(t *testing.T) {
	d := New[int]()

	called := 0
	var got int
	d.Register(func(ev int) {
		called++
		got = ev
	})

	d.Fire(123)
	assert.Equal(t, 1, called)
	assert.Equal(t, 123, got)
}

func TestFireInvokesAllHandlers(t *testing.T) {
	d := New[string]()

	var a, b []string
	d.Register(func(ev string) { a = append(a, ev) })
	d.Register(func(ev string) { b = append(b, ev) })

	d.Fire("x")
	d.Fire("y")

	assert.Equal(t, []string{"x", "y"}, a)
	assert.Equal(t, []string{"x", "y"}, b)
}

func TestUnregisteredHandlerNotFired(t *testing.T) {
	d := New[int]()

	called := 0
	sub := d.Register(func(int) { called++ })

	require.NoError(t, d.Unregister(sub))
	d.Fire(1)
	assert.Equal(t, 0, called)
}

func TestUnregisterUnknownSubscription(t *testing.T) {
	d := New[int]()

	err := d.Unregister(Subscription(99))
	assert.ErrorIs(t, err, ErrNotRegistered)

	// Double unregister behaves the same as never-registered.
	sub := d.Register(func(int) {})
	require.NoError(t, d.Unregister(sub))
	assert.ErrorIs(t, d.Unregister(sub), ErrNotRegistered)
}

func TestUnregisterDuringFire(t *testing.T) {
	d := New[int]()

	called := 0
	var sub Subscription
	sub = d.Register(func(int) {
		called++
		require.NoError(t, d.Unregister(sub))
	})

	// The in-flight broadcast still reaches the handler; later ones do not.
	d.Fire(1)
	d.Fire(2)
	assert.Equal(t, 1, called)
}

func TestUnregisterPeerDuringFire(t *testing.T) {
	d := New[int]()

	// Two handlers unregister each other. Whichever runs first, both were
	// registered at broadcast start, so both must see the first event.
	calls := make(map[string]int)
	var subA, subB Subscription
	subA = d.Register(func(int) {
		calls["a"]++
		d.Unregister(subB)
	})
	subB = d.Register(func(int) {
		calls["b"]++
		d.Unregister(subA)
	})

	d.Fire(1)
	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 1, calls["b"])

	// Both removals took effect once the broadcast finished.
	assert.Equal(t, 0, d.Len())
	d.Fire(2)
	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 1, calls["b"])
}

func TestRegisterDuringFire(t *testing.T) {
	d := New[int]()

	lateCalled := 0
	d.Register(func(int) {
		d.Register(func(int) { lateCalled++ })
	})

	// A handler registered mid-broadcast joins from the next broadcast on.
	d.Fire(1)
	assert.Equal(t, 0, lateCalled)
	d.Fire(2)
	assert.Equal(t, 1, lateCalled)
}

func TestLen(t *testing.T) {
	d := New[int]()
	assert.Equal(t, 0, d.Len())

	s1 := d.Register(func(int) {})
	d.Register(func(int) {})
	assert.Equal(t, 2, d.Len())

	require.NoError(t, d.Unregister(s1))
	assert.Equal(t, 1, d.Len())
}
