package injector

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	Engine struct {
		Power int
	}

	Car struct {
		Engine *Engine `inject:""`
	}

	Wheel struct{}

	Truck struct {
		Engine *Engine `inject:""`
		Wheel  *Wheel  `inject:""`
	}

	Missing struct{}

	NeedsMissing struct {
		Missing *Missing `inject:""`
	}

	CycleA struct {
		B *CycleB `inject:""`
	}

	CycleB struct {
		A *CycleA `inject:""`
	}

	Logger struct {
		Prefix string
	}

	Base struct {
		Engine *Engine `inject:""`
		Logger *Logger `inject:"optional"`
	}

	Derived struct {
		Base
		Logger *Logger `inject:""`
	}

	Reuse struct {
		Base
	}

	Closable struct {
		closed *atomic.Int32
	}

	Validated struct {
		Engine *Engine `inject:""`
	}

	EngineFactory struct {
		Power int
	}

	OtherFactory struct{}

	Garage struct {
		Engine *Engine `inject:""`
	}
)

var errInvalidEngine = errors.New("invalid engine")

func (c *Closable) Close() error {
	c.closed.Add(1)
	return nil
}

func (v *Validated) Init() error {
	if v.Engine.Power <= 0 {
		return errInvalidEngine
	}
	return nil
}

func (f EngineFactory) Build() *Engine {
	return &Engine{Power: f.Power}
}

func (f *EngineFactory) BuildWith(logger *Logger) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("no logger")
	}
	return &Engine{Power: f.Power}, nil
}

func (OtherFactory) Build() *Engine {
	return &Engine{}
}

func (g *Garage) BuildCar() *Car {
	return &Car{Engine: g.Engine}
}

func newEngine() *Engine {
	return &Engine{Power: 100}
}

// counted wraps a factory returning T, counting its invocations.
func counted[T any](calls *atomic.Int32, build func() T) func() T {
	return func() T {
		calls.Add(1)
		return build()
	}
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var injectorErr *Error
	require.ErrorAs(t, err, &injectorErr)
	return injectorErr
}
