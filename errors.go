package injector

import (
	"fmt"
	"strings"
)

// ErrorKind classifies the configuration errors raised by normalization and resolution.
// None of them is transient: the provider wiring has to be fixed.
type ErrorKind int

const (
	KindNoProvider ErrorKind = iota + 1
	KindCyclicDependency
	KindInstantiation
	KindMixedMultiProviders
	KindInvalidProvider
	KindCannotFindMethodInClass
	KindCannotFindFactoryAsMethod
)

// Sentinels to be used with errors.Is.
var (
	ErrNoProvider                = &Error{Kind: KindNoProvider}
	ErrCyclicDependency          = &Error{Kind: KindCyclicDependency}
	ErrInstantiation             = &Error{Kind: KindInstantiation}
	ErrMixedMultiProviders       = &Error{Kind: KindMixedMultiProviders}
	ErrInvalidProvider           = &Error{Kind: KindInvalidProvider}
	ErrCannotFindMethodInClass   = &Error{Kind: KindCannotFindMethodInClass}
	ErrCannotFindFactoryAsMethod = &Error{Kind: KindCannotFindFactoryAsMethod}
)

// Error is the structured error raised by the container and the normalizer.
type Error struct {
	Kind ErrorKind

	// Path is the resolution path attached to the error.
	//
	// For KindCyclicDependency it is the closed loop in resolution order ([A, B, A]).
	// For KindNoProvider and KindInstantiation it starts at the failing token and ends
	// at the token originally requested ([B, A] when A needs the missing B).
	Path []Token

	// Detail is a human readable complement (offending provider, method name, ...).
	Detail string

	// Cause is the error returned (or panic raised) by a binding, for KindInstantiation.
	Cause error
}

func (k ErrorKind) String() string {
	switch k {
	case KindNoProvider:
		return "NoProvider"
	case KindCyclicDependency:
		return "CyclicDependency"
	case KindInstantiation:
		return "InstantiationError"
	case KindMixedMultiProviders:
		return "MixedMultiProviders"
	case KindInvalidProvider:
		return "InvalidProvider"
	case KindCannotFindMethodInClass:
		return "CannotFindMethodInClass"
	case KindCannotFindFactoryAsMethod:
		return "CannotFindFactoryAsMethod"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (e *Error) Error() string {
	if len(e.Path) == 0 && e.Detail == "" {
		return e.Kind.String()
	}
	switch e.Kind {
	case KindNoProvider:
		if len(e.Path) == 0 {
			return fmt.Sprintf("no provider: %s", e.Detail)
		}
		return fmt.Sprintf("no provider for %s! (%s)", e.Path[0], e.Chain())
	case KindCyclicDependency:
		return fmt.Sprintf("cannot instantiate cyclic dependency! (%s)", e.Chain())
	case KindInstantiation:
		if len(e.Path) == 0 {
			return fmt.Sprintf("error during instantiation: %s:\n\t%v", e.Detail, e.Cause)
		}
		return fmt.Sprintf("error during instantiation of %s! (%s): %s:\n\t%v", e.Path[0], e.Chain(), e.Detail, e.Cause)
	case KindMixedMultiProviders:
		return fmt.Sprintf("cannot mix multi providers and regular providers, got: %s", e.Detail)
	case KindInvalidProvider:
		return fmt.Sprintf("invalid provider: %s", e.Detail)
	case KindCannotFindMethodInClass:
		return fmt.Sprintf("cannot find method in class: %s", e.Detail)
	case KindCannotFindFactoryAsMethod:
		return fmt.Sprintf("cannot find factory as method: %s", e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind carrying no path, which is the case of the
// Err* sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && len(t.Path) == 0 && t.Detail == "" && t.Cause == nil
}

// Chain renders the path in resolution order: "A -> B" for a missing B needed by A,
// "A -> B -> A" for a cycle.
func (e *Error) Chain() string {
	tokens := make([]string, len(e.Path))
	for i, token := range e.Path {
		if e.Kind == KindCyclicDependency {
			tokens[i] = fmt.Sprint(token)
		} else {
			tokens[len(e.Path)-1-i] = fmt.Sprint(token)
		}
	}
	return strings.Join(tokens, " -> ")
}

func newNoProviderError(path []Token) *Error {
	return &Error{Kind: KindNoProvider, Path: path}
}

func newCyclicDependencyError(path []Token) *Error {
	return &Error{Kind: KindCyclicDependency, Path: path}
}

func newInstantiationError(path []Token, rec *ResolvedProvider, cause error) *Error {
	verb := "constructing class"
	if rec.Kind == FactoryBinding {
		verb = "invoking factory"
	} else if rec.Kind != ClassBinding {
		verb = "providing"
	}
	return &Error{
		Kind:   KindInstantiation,
		Path:   path,
		Detail: fmt.Sprintf("%s %s", verb, rec.source),
		Cause:  cause,
	}
}

func newProviderError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
