package injector

import (
	"fmt"
)

// notFoundMarker is given as notFoundValue by TryResolve to detect a missing provider.
var notFoundMarker = &struct{ name string }{name: "not found"}

// Resolve returns the instance bound to the type token of T.
func Resolve[T any](c *Container) (T, error) {
	return ResolveToken[T](c, Type[T]())
}

// ResolveToken returns the instance bound to token, as a T.
func ResolveToken[T any](c *Container, token Token) (T, error) {
	var zero T
	raw, err := c.Get(token)
	if err != nil {
		return zero, fmt.Errorf("failed to resolve %s:\n\t%w", token, err)
	}
	return unReflect[T](raw)
}

// MustResolve is Resolve panicking on error.
func MustResolve[T any](c *Container) T {
	val, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s:\n\t%v", Type[T](), err))
	}
	return val
}

// TryResolve attempts to resolve the type token of T.
//
// It returns the resolved value, a boolean indicating if a provider was found, and an error if
// any occurred during resolution (a missing dependency of a found provider included).
func TryResolve[T any](c *Container) (value T, found bool, err error) {
	token := Type[T]()
	raw, err := c.GetOr(token, notFoundMarker)
	if err != nil {
		return value, false, fmt.Errorf("failed to resolve %s:\n\t%w", token, err)
	}
	if raw == any(notFoundMarker) {
		return value, false, nil
	}
	value, err = unReflect[T](raw)
	return value, err == nil, err
}

// ResolveAll returns the instances of a multi token, as T values, in declaration order.
func ResolveAll[T any](c *Container, token Token) ([]T, error) {
	raw, err := c.Get(token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s:\n\t%w", token, err)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("token %s is not bound to multi providers, got %T", token, raw)
	}

	values := make([]T, len(items))
	for i, item := range items {
		if values[i], err = unReflect[T](item); err != nil {
			return nil, fmt.Errorf("element %d of %s:\n\t%w", i, token, err)
		}
	}
	return values, nil
}

func unReflect[T any](v any) (res T, err error) {
	if v == nil {
		return res, nil
	}
	res, ok := v.(T)
	if !ok {
		return res, fmt.Errorf("value %v is not of type %s", v, TypeOf[T]())
	}
	return res, nil
}
