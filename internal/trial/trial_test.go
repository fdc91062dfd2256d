package trial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCounter struct {
	n       int
	readErr error
	incErr  error
	calls   int
}

func (f *fakeCounter) Lifetime(context.Context, string) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.n, nil
}

func (f *fakeCounter) IncrementLifetime(context.Context, string) (int, error) {
	f.calls++
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.n++
	return f.n, nil
}

type failingEntitlement struct{}

func (failingEntitlement) IsEntitled(context.Context, string) (bool, error) {
	return true, errors.New("billing unreachable")
}

func TestStatusCanAccess(t *testing.T) {
	tests := []struct {
		name string
		st   Status
		want bool
	}{
		{"remaining", Status{Remaining: 1}, true},
		{"exhausted", Status{Remaining: 0}, false},
		{"entitled", Status{Entitled: true}, true},
		{"unknown", Status{Unknown: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.st.CanAccess())
		})
	}
}

func TestGate_Boundary(t *testing.T) {
	ctx := context.Background()
	c := &fakeCounter{n: 49}
	g := NewGate(c, Static(false), DefaultFreeLimit, nil)

	st := g.Check(ctx, "u")
	assert.True(t, st.CanAccess(), "49 answered still has one left")
	assert.Equal(t, 1, st.Remaining)

	st = g.RecordAnswer(ctx, "u")
	assert.Equal(t, 50, st.Used)
	assert.Equal(t, 0, st.Remaining)
	assert.False(t, st.CanAccess())
	assert.Equal(t, 1, c.calls)
}

func TestGate_RemainingNeverNegative(t *testing.T) {
	g := NewGate(&fakeCounter{n: 75}, Static(false), 50, nil)
	assert.Equal(t, 0, g.Check(context.Background(), "u").Remaining)
}

func TestGate_EntitledBypassesLimit(t *testing.T) {
	g := NewGate(&fakeCounter{n: 500}, Static(true), 50, nil)
	st := g.RecordAnswer(context.Background(), "u")
	assert.True(t, st.CanAccess())
	assert.Equal(t, 501, st.Used)
}

func TestGate_EntitlementErrorIsNotEntitled(t *testing.T) {
	ctx := context.Background()

	g := NewGate(&fakeCounter{n: 50}, failingEntitlement{}, 50, nil)
	assert.False(t, g.Check(ctx, "u").CanAccess(), "errors never grant unlimited access")

	g = NewGate(&fakeCounter{n: 10}, failingEntitlement{}, 50, nil)
	assert.True(t, g.Check(ctx, "u").CanAccess(), "free questions left still allowed")
}

func TestGate_CounterFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("no known count allows", func(t *testing.T) {
		g := NewGate(&fakeCounter{readErr: errors.New("locked")}, Static(false), 50, nil)
		st := g.Check(ctx, "u")
		assert.True(t, st.Unknown)
		assert.True(t, st.CanAccess())
	})

	t.Run("falls back to last known", func(t *testing.T) {
		c := &fakeCounter{n: 49}
		g := NewGate(c, Static(false), 50, nil)
		assert.True(t, g.Check(ctx, "u").CanAccess())

		c.incErr = errors.New("locked")
		st := g.RecordAnswer(ctx, "u")
		assert.False(t, st.Unknown)
		assert.Equal(t, 50, st.Used)
		assert.False(t, st.CanAccess())
	})
}

func TestNewGate_DefaultLimit(t *testing.T) {
	g := NewGate(&fakeCounter{}, nil, 0, nil)
	assert.Equal(t, DefaultFreeLimit, g.Limit())
	assert.False(t, g.Check(context.Background(), "u").Entitled)
}
