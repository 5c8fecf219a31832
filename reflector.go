package injector

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/a-peyrard/injector/set"
	"github.com/muir/reflectutils"
)

const injectTag = "inject"

type (
	// Initializer can be implemented by class instances that need to validate or complete
	// their state once all their fields have been injected.
	Initializer interface {
		Init() error
	}

	// FieldSpec stacks extra modifiers on one injected field of a class binding.
	FieldSpec struct {
		name      string
		modifiers ParamSpec
	}

	injectedField struct {
		index    []int
		name     string
		typ      reflect.Type
		exported bool
		tagMods  ParamSpec
		tagErr   error
	}
)

// Field targets the injected field with the given name.
func Field(name string, modifiers ...Modifier) FieldSpec {
	return FieldSpec{name: name, modifiers: modifiers}
}

// Class returns the constructible type for struct T. Instances are built as *T.
func Class[T any]() reflect.Type {
	return reflect.PointerTo(TypeOf[T]())
}

// Describe returns the ordered dependency list of a constructible unit: a function (value or
// type), a struct type or a pointer-to-struct type.
//
// Functions get one dependency per parameter, keyed by the parameter type. Structs get one
// dependency per field tagged `inject`, fields of embedded structs included unless the outer
// struct redeclares them. Anything else, or a unit declaring nothing, gives an empty list.
func Describe(unit any) []Dependency {
	var typ reflect.Type
	switch u := unit.(type) {
	case nil:
		return []Dependency{}
	case reflect.Type:
		typ = u
	default:
		typ = reflect.TypeOf(unit)
	}

	switch {
	case typ.Kind() == reflect.Func:
		return describeFunc(typ, 0, nil)
	case isClassType(typ):
		return describeFields(injectedFields(typ), nil)
	}
	return []Dependency{}
}

func isClassType(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Kind() == reflect.Struct
}

// describeFunc describes the parameters of fnType, starting at parameter `from` (1 to skip a
// method receiver). Explicit specs are applied positionally over the inferred token.
func describeFunc(fnType reflect.Type, from int, specs []ParamSpec) []Dependency {
	deps := make([]Dependency, 0, fnType.NumIn()-from)
	for i := from; i < fnType.NumIn(); i++ {
		dep := Dependency{Token: TypeToken(fnType.In(i))}
		if spec, found := tryGetAt(specs, i-from); found {
			dep = spec.apply(dep)
		}
		deps = append(deps, dep)
	}
	return deps
}

func describeFields(fields []injectedField, overrides []FieldSpec) []Dependency {
	deps := make([]Dependency, len(fields))
	for i, field := range fields {
		dep := field.tagMods.apply(Dependency{Token: TypeToken(field.typ)})
		for _, override := range overrides {
			if override.name == field.name {
				dep = override.modifiers.apply(dep)
			}
		}
		deps[i] = dep
	}
	return deps
}

// injectedFields lists the tagged fields of a struct (or pointer to struct) in declaration
// order, walking embedded structs in place. A field hidden by a redeclaration in an outer
// struct is dropped, as is a name made ambiguous by two embedded structs.
func injectedFields(typ reflect.Type) []injectedField {
	structTyp := typ
	if structTyp.Kind() == reflect.Pointer {
		structTyp = structTyp.Elem()
	}

	var (
		fields []injectedField
		seen   = set.New[string]()
	)
	reflectutils.WalkStructElements(structTyp, func(field reflect.StructField) bool {
		tag, tagged := field.Tag.Lookup(injectTag)
		if !tagged {
			return field.Anonymous && field.Type.Kind() == reflect.Struct
		}
		visible, found := structTyp.FieldByName(field.Name)
		if !found || !sameField(visible, field) {
			return false
		}
		if seen.Contains(visible.Name) {
			return false
		}
		seen.Add(visible.Name)

		mods, err := parseInjectTag(tag)
		fields = append(fields, injectedField{
			index:    visible.Index,
			name:     visible.Name,
			typ:      visible.Type,
			exported: visible.IsExported(),
			tagMods:  mods,
			tagErr:   err,
		})
		return false
	})
	return fields
}

func sameField(visible, walked reflect.StructField) bool {
	return visible.Type == walked.Type &&
		visible.Tag == walked.Tag &&
		visible.Index[len(visible.Index)-1] == walked.Index[len(walked.Index)-1]
}

func parseInjectTag(tag string) (ParamSpec, error) {
	var (
		mods    ParamSpec
		unknown []string
	)
	for _, opt := range strings.Split(tag, ",") {
		switch strings.TrimSpace(opt) {
		case "":
		case "optional":
			mods = append(mods, Inject.Optional())
		case "skipSelf":
			mods = append(mods, Inject.SkipSelf())
		case "self":
			mods = append(mods, Inject.Self())
		default:
			unknown = append(unknown, opt)
		}
	}
	if len(unknown) > 0 {
		return mods, fmt.Errorf("unknown inject tag option(s) %q", unknown)
	}
	return mods, nil
}

// newClassInstance builds a class instance, assigning args to the injected fields in order.
func newClassInstance(typ reflect.Type, fields []injectedField, args []reflect.Value) (reflect.Value, error) {
	structTyp := typ
	if typ.Kind() == reflect.Pointer {
		structTyp = typ.Elem()
	}

	instance := reflect.New(structTyp)
	elem := instance.Elem()
	for i, field := range fields {
		elem.FieldByIndex(field.index).Set(args[i])
	}

	if initializer, ok := instance.Interface().(Initializer); ok {
		if err := initializer.Init(); err != nil {
			return reflect.Value{}, err
		}
	}

	if typ.Kind() == reflect.Pointer {
		return instance, nil
	}
	return elem, nil
}

func tryGetAt[T any](slice []T, index int) (val T, found bool) {
	if index < 0 || index >= len(slice) {
		return val, false
	}
	return slice[index], true
}
