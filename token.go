package injector

import (
	"fmt"
	"reflect"

	"github.com/muir/reflectutils"
)

type (
	// Token is the key under which a dependency is requested.
	//
	// Tokens compare by identity: a type token is equal to another type token only for the
	// very same Go type, and an *InjectionToken is only equal to itself.
	Token interface {
		fmt.Stringer

		isToken()
	}

	typeToken struct {
		typ reflect.Type
	}

	// InjectionToken is an explicit token, used when the Go type alone is not enough to
	// identify a dependency (configuration values, plugin lists, ...).
	InjectionToken struct {
		description string
	}
)

var (
	ErrorType    = TypeOf[error]()
	AnySliceType = TypeOf[[]any]()
)

// NewToken creates a new explicit token. The description is only used in diagnostics.
func NewToken(description string) *InjectionToken {
	return &InjectionToken{description: description}
}

func (t *InjectionToken) String() string {
	return t.description
}

func (t *InjectionToken) isToken() {}

// Type returns the token identifying the Go type T.
func Type[T any]() Token {
	return TypeToken(TypeOf[T]())
}

// TypeToken returns the token identifying the given Go type.
func TypeToken(typ reflect.Type) Token {
	if typ == nil {
		return nil
	}
	return typeToken{typ: typ}
}

func (t typeToken) String() string {
	return reflectutils.TypeName(t.typ)
}

func (t typeToken) isToken() {}

// ResultToken returns the token a bare factory entry is bound to: the type of the first result
// of fn. It returns nil when fn is not a function returning something.
func ResultToken(fn any) Token {
	typ := reflect.TypeOf(fn)
	if typ == nil || typ.Kind() != reflect.Func || typ.NumOut() == 0 {
		return nil
	}
	return TypeToken(typ.Out(0))
}

// TokenType returns the Go type behind a type token, if any.
func TokenType(token Token) (reflect.Type, bool) {
	if tt, ok := token.(typeToken); ok {
		return tt.typ, true
	}
	return nil, false
}

// TypeOf returns the reflect.Type of T, interfaces included.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
