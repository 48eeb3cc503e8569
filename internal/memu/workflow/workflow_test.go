package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureState struct {
	trail []string
}

func TestNewRejectsUnsatisfiedRequires(t *testing.T) {
	_, err := New("fixture",
		Step[fixtureState]{
			ID:       "second",
			Requires: []string{"raw_text"},
			Handler:  func(context.Context, *fixtureState, Capabilities) error { return nil },
		},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_text")
}

func TestNewAcceptsChainedRequiresProduces(t *testing.T) {
	_, err := New("fixture",
		Step[fixtureState]{ID: "first", Produces: []string{"raw_text"}, Handler: noop},
		Step[fixtureState]{ID: "second", Requires: []string{"raw_text"}, Handler: noop},
	)
	assert.NoError(t, err)
}

func TestRunExecutesInOrder(t *testing.T) {
	p, err := New("fixture",
		Step[fixtureState]{ID: "a", Handler: func(_ context.Context, s *fixtureState, _ Capabilities) error {
			s.trail = append(s.trail, "a")
			return nil
		}},
		Step[fixtureState]{ID: "b", Handler: func(_ context.Context, s *fixtureState, _ Capabilities) error {
			s.trail = append(s.trail, "b")
			return nil
		}},
	)
	require.NoError(t, err)

	state := &fixtureState{}
	require.NoError(t, p.Run(context.Background(), state, Capabilities{}))
	assert.Equal(t, []string{"a", "b"}, state.trail)
}

func TestRunFailsOnMissingCapability(t *testing.T) {
	p, err := New("fixture",
		Step[fixtureState]{ID: "needs-llm", Needs: []Capability{CapabilityLLM}, Handler: noop},
	)
	require.NoError(t, err)

	err = p.Run(context.Background(), &fixtureState{}, Capabilities{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs-llm")
	assert.Contains(t, err.Error(), "llm")
}

func TestRunWrapsHandlerError(t *testing.T) {
	boom := assert.AnError
	p, err := New("fixture",
		Step[fixtureState]{ID: "boom", Role: "explode", Handler: func(context.Context, *fixtureState, Capabilities) error {
			return boom
		}},
	)
	require.NoError(t, err)

	err = p.Run(context.Background(), &fixtureState{}, Capabilities{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "explode")
}

func TestRunRespectsCancelledContext(t *testing.T) {
	p, err := New("fixture", Step[fixtureState]{ID: "a", Handler: noop})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Run(ctx, &fixtureState{}, Capabilities{})
	require.Error(t, err)
}

func noop(context.Context, *fixtureState, Capabilities) error { return nil }
