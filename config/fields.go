package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/a-peyrard/injector"
)

// Fields exposes every field of a configuration struct T as an injectable value.
//
// Each field gets its own token, described as "T.Path.To.Field". Its provider depends on the
// *T token and reads the field from the configuration resolved in the container, so a child
// container providing another *T sees its own values.
type Fields struct {
	prefix    string
	tokens    map[string]*injector.InjectionToken
	paths     []string
	providers []any
}

// FieldProviders describes the fields of T. When cfg is not nil, it is also bound to the *T
// token; otherwise *T must be provided by the container (or one of its ancestors).
func FieldProviders[T any](cfg *T) *Fields {
	fields := &Fields{
		prefix: reflect.TypeOf((*T)(nil)).Elem().Name(),
		tokens: make(map[string]*injector.InjectionToken),
	}
	if cfg != nil {
		fields.providers = append(fields.providers, injector.Provide(injector.Type[*T](), injector.UseValue(cfg)))
	}

	walk(reflect.ValueOf(new(T)), nil, func(val reflect.Value, path []string) {
		allocateNilStruct(val)
		if len(path) == 0 {
			return
		}

		fieldPath := strings.Join(path, ".")
		if _, known := fields.tokens[fieldPath]; known {
			return
		}
		token := injector.NewToken(fields.prefix + "." + fieldPath)
		fields.tokens[fieldPath] = token
		fields.paths = append(fields.paths, fieldPath)
		fields.providers = append(
			fields.providers,
			injector.Provide(token, injector.UseFactory(func(conf *T) (any, error) {
				return lookup(conf, fieldPath)
			})),
		)
	})

	return fields
}

// Token returns the token of the field at path ("Server.Port"), or nil for an unknown path.
func (f *Fields) Token(path string) injector.Token {
	token, found := f.tokens[strings.TrimPrefix(path, f.prefix+".")]
	if !found {
		return nil
	}
	return token
}

// Paths lists the field paths, parents before their nested fields.
func (f *Fields) Paths() []string {
	return append([]string(nil), f.paths...)
}

// Providers makes Fields a registry.
func (f *Fields) Providers() []any {
	return append([]any(nil), f.providers...)
}

// lookup reads the value at a dotted path of struct fields and map keys.
func lookup(origin any, path string) (any, error) {
	if origin == nil {
		return nil, fmt.Errorf("cannot get field %s from nil origin", path)
	}
	if path == "" {
		return nil, fmt.Errorf("field path cannot be empty")
	}

	current := origin
	for i, name := range strings.Split(path, ".") {
		if name == "" {
			return nil, fmt.Errorf("empty name at position %d in field path %s", i, path)
		}

		val := deref(reflect.ValueOf(current))
		if !val.IsValid() {
			return nil, fmt.Errorf("encountered nil value at %s (position %d) in field path %s", name, i, path)
		}

		switch val.Kind() {
		case reflect.Map:
			if val.Type().Key().Kind() != reflect.String {
				return nil, fmt.Errorf("cannot traverse %s: map keys of %s are not strings at position %d in field path %s", name, val.Type(), i, path)
			}
			entry := val.MapIndex(reflect.ValueOf(name).Convert(val.Type().Key()))
			if !entry.IsValid() {
				return nil, fmt.Errorf("key %s not found in map at position %d in field path %s", name, i, path)
			}
			current = entry.Interface()

		case reflect.Struct:
			field := val.FieldByName(name)
			if !field.IsValid() {
				return nil, fmt.Errorf("field %s not found in struct %s at position %d in field path %s", name, val.Type().Name(), i, path)
			}
			if !field.CanInterface() {
				return nil, fmt.Errorf("field %s in struct %s is not exported at position %d in field path %s", name, val.Type().Name(), i, path)
			}
			current = field.Interface()

		default:
			return nil, fmt.Errorf("cannot traverse %s: expected struct or map but got %s at position %d in field path %s", name, val.Kind(), i, path)
		}
	}

	return current, nil
}
