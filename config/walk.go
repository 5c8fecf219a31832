package config

import (
	"reflect"
	"strings"

	"github.com/a-peyrard/injector/set"
)

type visitor func(val reflect.Value, path []string)

// walk calls visit on val, then on every exported field of the struct val points to,
// recursively. path holds the field names from the root. visit runs before the descent, so it
// can allocate a nil pointer that is then walked. A struct type is not entered again below
// itself.
func walk(val reflect.Value, path []string, visit visitor) {
	walkChain(val, path, set.New[reflect.Type](), visit)
}

func walkChain(val reflect.Value, path []string, chain set.Set[reflect.Type], visit visitor) {
	visit(val, path)

	val = deref(val)
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return
	}
	typ := val.Type()
	if chain.Contains(typ) {
		return
	}
	chain.Add(typ)
	defer chain.Remove(typ)

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldPath := append(append(make([]string, 0, len(path)+1), path...), field.Name)
		walkChain(val.Field(i), fieldPath, chain, visit)
	}
}

// deref follows pointers and interfaces down to the concrete value.
func deref(val reflect.Value) reflect.Value {
	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		val = val.Elem()
	}
	return val
}

func isNilPointer(val reflect.Value) bool {
	return val.Kind() == reflect.Pointer && val.IsNil()
}

func allocateNilStruct(val reflect.Value) {
	if isNilPointer(val) && val.Type().Elem().Kind() == reflect.Struct && val.CanSet() {
		val.Set(reflect.New(val.Type().Elem()))
	}
}

// toScreamingSnakeCase turns a field name into its environment variable form, CustomerId
// giving CUSTOMER_ID.
func toScreamingSnakeCase(in string) string {
	in = strings.TrimSpace(in)
	if len(in) == 0 {
		return in
	}

	sb := strings.Builder{}
	sb.Grow(len(in) + len(in)/3)

	for i, b := range []byte(in) {
		shouldWrite := true
		needsSeparator := false

		switch {
		case 'a' <= b && b <= 'z':
			b -= 'a' - 'A'
		case 'A' <= b && b <= 'Z':
			needsSeparator = true
		case b == '_' || b == '-':
			shouldWrite = false
			needsSeparator = true
		case '0' <= b && b <= '9':
			needsSeparator = true
		}

		if i > 0 && needsSeparator {
			sb.WriteByte('_')
		}
		if shouldWrite {
			sb.WriteByte(b)
		}
	}

	return sb.String()
}
