package injector

type (
	// resolutionTracker is the resolution stack of one top-level Get or Check call: the (token,
	// container) pairs being resolved, outermost first.
	resolutionTracker struct {
		stack []frame
	}

	frame struct {
		token     Token
		container *Container
		// delegated marks a lookup handed over from a child to its parent; it stays out of
		// paths since the child frame already names the token.
		delegated bool
	}
)

func newResolutionTracker() *resolutionTracker {
	return &resolutionTracker{
		stack: make([]frame, 0, 8),
	}
}

// Push enters the resolution of token in container. Re-entering a pair that is already being
// resolved is a cycle: the error reports the loop, from the latest occurrence of the pair up to
// the repeat.
func (tracker *resolutionTracker) Push(token Token, container *Container) error {
	return tracker.push(frame{token: token, container: container})
}

// Delegate enters the resolution of token in container on behalf of one of its children.
func (tracker *resolutionTracker) Delegate(token Token, container *Container) error {
	return tracker.push(frame{token: token, container: container, delegated: true})
}

func (tracker *resolutionTracker) push(f frame) error {
	for i := len(tracker.stack) - 1; i >= 0; i-- {
		current := tracker.stack[i]
		if current.token != f.token || current.container != f.container {
			continue
		}
		loop := []Token{current.token}
		for _, inLoop := range tracker.stack[i+1:] {
			if !inLoop.delegated {
				loop = append(loop, inLoop.token)
			}
		}
		if !f.delegated {
			loop = append(loop, f.token)
		}
		return newCyclicDependencyError(loop)
	}
	tracker.stack = append(tracker.stack, f)

	return nil
}

func (tracker *resolutionTracker) Pop() {
	if len(tracker.stack) == 0 {
		panic("tracker: pop from empty stack")
	}
	tracker.stack = tracker.stack[:len(tracker.stack)-1]
}

func (tracker *resolutionTracker) Depth() int {
	return len(tracker.stack)
}

// Path returns the tokens of the stack, innermost first, without the delegated frames.
func (tracker *resolutionTracker) Path() []Token {
	path := make([]Token, 0, len(tracker.stack))
	for i := len(tracker.stack) - 1; i >= 0; i-- {
		if !tracker.stack[i].delegated {
			path = append(path, tracker.stack[i].token)
		}
	}
	return path
}
