package injector

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/a-peyrard/injector/set"
	"github.com/muir/reflectutils"
)

// BindingKind tells how a ResolvedProvider produces its value.
type BindingKind int

const (
	ValueBinding BindingKind = iota + 1
	ClassBinding
	FactoryBinding
	AliasBinding
)

type (
	// ResolvedProvider is the canonical form of a provider declaration.
	ResolvedProvider struct {
		Token        Token
		Kind         BindingKind
		Dependencies []Dependency
		Multi        bool

		produce producer
		source  string
	}

	// producer builds the value from the resolved dependencies, in Dependencies order.
	// Absent optional dependencies are nil.
	producer func(args []any) (any, error)

	// ProviderTable maps tokens to their providers, in first declaration order.
	// A table is never modified once Normalize returned it.
	ProviderTable struct {
		order   []Token
		entries map[Token]*tableEntry
	}

	// tableEntry holds either one scalar record or the ordered records of a multi token.
	tableEntry struct {
		single *ResolvedProvider
		multi  []*ResolvedProvider
	}
)

func (k BindingKind) String() string {
	switch k {
	case ValueBinding:
		return "value"
	case ClassBinding:
		return "class"
	case FactoryBinding:
		return "factory"
	case AliasBinding:
		return "alias"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

func (p *ResolvedProvider) String() string {
	return fmt.Sprintf("%s %s (%s)", p.Kind, p.source, p.Token)
}

// Normalize turns raw provider declarations into a provider table.
//
// Accepted entries are class types (see Class), factory functions (bound to their first
// result type), *Binding values, Registry values and nested []any lists. Any error aborts the
// whole normalization: no partial table is returned.
func Normalize(raw []any) (*ProviderTable, error) {
	table := &ProviderTable{entries: make(map[Token]*tableEntry)}
	if err := table.addAll(raw); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *ProviderTable) addAll(raw []any) error {
	for _, entry := range raw {
		switch e := entry.(type) {
		case []any:
			if err := t.addAll(e); err != nil {
				return err
			}
		case Registry:
			if err := t.addAll(e.Providers()); err != nil {
				return err
			}
		default:
			rec, err := resolveProvider(entry)
			if err != nil {
				return err
			}
			if err := t.add(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *ProviderTable) add(rec *ResolvedProvider) error {
	entry, exists := t.entries[rec.Token]
	if !exists {
		entry = &tableEntry{}
		if rec.Multi {
			entry.multi = []*ResolvedProvider{rec}
		} else {
			entry.single = rec
		}
		t.entries[rec.Token] = entry
		t.order = append(t.order, rec.Token)
		return nil
	}

	if entry.isMulti() != rec.Multi {
		return newProviderError(KindMixedMultiProviders, "token %s is bound both with and without multi", rec.Token)
	}
	if rec.Multi {
		entry.multi = append(entry.multi, rec)
	} else {
		entry.single = rec
	}
	return nil
}

func (e *tableEntry) isMulti() bool {
	return e.multi != nil
}

func (e *tableEntry) records() []*ResolvedProvider {
	if e.isMulti() {
		return e.multi
	}
	return []*ResolvedProvider{e.single}
}

// Tokens lists the bound tokens in first declaration order.
func (t *ProviderTable) Tokens() []Token {
	return append([]Token(nil), t.order...)
}

func (t *ProviderTable) Len() int {
	return len(t.order)
}

// Lookup returns the providers bound to token: exactly one for a scalar token, all of them in
// declaration order for a multi token.
func (t *ProviderTable) Lookup(token Token) (providers []*ResolvedProvider, multi bool, found bool) {
	entry, found := t.entry(token)
	if !found {
		return nil, false, false
	}
	return append([]*ResolvedProvider(nil), entry.records()...), entry.isMulti(), true
}

func (t *ProviderTable) entry(token Token) (*tableEntry, bool) {
	if t == nil {
		return nil, false
	}
	entry, found := t.entries[token]
	return entry, found
}

func resolveProvider(entry any) (*ResolvedProvider, error) {
	switch e := entry.(type) {
	case nil:
		return nil, newProviderError(KindInvalidProvider, "nil entry")
	case *Binding:
		if e == nil {
			return nil, newProviderError(KindInvalidProvider, "nil *Binding")
		}
		return resolveBinding(e)
	case Binding:
		return resolveBinding(&e)
	case reflect.Type:
		if !isClassType(e) {
			return nil, newProviderError(KindInvalidProvider, "type %s is not a struct type", reflectutils.TypeName(e))
		}
		return resolveClass(TypeToken(e), e, nil, false)
	}

	if val := reflect.ValueOf(entry); val.Kind() == reflect.Func && !val.IsNil() {
		if val.Type().NumOut() == 0 {
			return nil, newProviderError(KindInvalidProvider, "factory %s does not return anything", funcName(val))
		}
		return resolveFactory(TypeToken(val.Type().Out(0)), entry, nil, false)
	}

	return nil, newProviderError(KindInvalidProvider, "%T is not a provider, expected a class type, a factory function or a *Binding", entry)
}

func resolveBinding(b *Binding) (*ResolvedProvider, error) {
	if b.Token == nil {
		return nil, newProviderError(KindInvalidProvider, "binding %s has no token", b)
	}
	if len(b.uses) != 1 {
		return nil, newProviderError(
			KindInvalidProvider,
			"binding %s must use exactly one of UseValue, UseClass, UseExisting, UseFactory or UseFactoryMethod, got %d",
			b, len(b.uses),
		)
	}

	switch b.uses[0] {
	case ValueBinding:
		value := b.value
		return &ResolvedProvider{
			Token:        b.Token,
			Kind:         ValueBinding,
			Dependencies: []Dependency{},
			Multi:        b.multi,
			produce: func([]any) (any, error) {
				return value, nil
			},
			source: fmt.Sprintf("value %T", value),
		}, nil

	case ClassBinding:
		if b.class == nil {
			return nil, newProviderError(KindInvalidProvider, "binding %s has a nil class", b)
		}
		return resolveClass(b.Token, b.class, b.fields, b.multi)

	case AliasBinding:
		if b.existing == nil {
			return nil, newProviderError(KindInvalidProvider, "binding %s is an alias of a nil token", b)
		}
		return &ResolvedProvider{
			Token:        b.Token,
			Kind:         AliasBinding,
			Dependencies: []Dependency{{Token: b.existing}},
			Multi:        b.multi,
			produce: func(args []any) (any, error) {
				return args[0], nil
			},
			source: fmt.Sprintf("alias of %s", b.existing),
		}, nil

	default:
		if b.unit != nil || b.method != nil {
			return resolveFactoryMethod(b.Token, b.unit, b.method, b.params, b.multi)
		}
		return resolveFactory(b.Token, b.factory, b.params, b.multi)
	}
}

func resolveClass(token Token, typ reflect.Type, overrides []FieldSpec, multi bool) (*ResolvedProvider, error) {
	if !isClassType(typ) {
		return nil, newProviderError(KindInvalidProvider, "class binding for %s needs a struct type, got %s", token, reflectutils.TypeName(typ))
	}
	fields, err := classFields(typ, overrides)
	if err != nil {
		return nil, err
	}

	argTypes := make([]reflect.Type, len(fields))
	for i, field := range fields {
		argTypes[i] = field.typ
	}

	return &ResolvedProvider{
		Token:        token,
		Kind:         ClassBinding,
		Dependencies: describeFields(fields, overrides),
		Multi:        multi,
		produce: func(args []any) (any, error) {
			values, err := adaptArgs(args, argTypes)
			if err != nil {
				return nil, err
			}
			return safely(func() (any, error) {
				instance, err := newClassInstance(typ, fields, values)
				if err != nil {
					return nil, err
				}
				return instance.Interface(), nil
			})
		},
		source: reflectutils.TypeName(typ),
	}, nil
}

// classFields returns the injected fields of a class type, refusing what cannot be injected.
func classFields(typ reflect.Type, overrides []FieldSpec) ([]injectedField, error) {
	fields := injectedFields(typ)
	names := set.New[string]()
	for _, field := range fields {
		if field.tagErr != nil {
			return nil, newProviderError(KindInvalidProvider, "field %s of %s: %v", field.name, reflectutils.TypeName(typ), field.tagErr)
		}
		if !field.exported {
			return nil, newProviderError(KindInvalidProvider, "field %s of %s is not exported, it cannot be injected", field.name, reflectutils.TypeName(typ))
		}
		names.Add(field.name)
	}
	for _, override := range overrides {
		if names.DoesNotContain(override.name) {
			return nil, newProviderError(KindInvalidProvider, "%s has no injected field %s", reflectutils.TypeName(typ), override.name)
		}
	}
	return fields, nil
}

func resolveFactory(token Token, fn any, params []ParamSpec, multi bool) (*ResolvedProvider, error) {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func || fnVal.IsNil() {
		return nil, newProviderError(KindInvalidProvider, "factory for %s must be a function, got %T", token, fn)
	}
	fnType := fnVal.Type()
	if err := validateFactorySignature(fnType, 0, params); err != nil {
		return nil, newProviderError(KindInvalidProvider, "factory %s for %s: %v", funcName(fnVal), token, err)
	}

	argTypes := make([]reflect.Type, fnType.NumIn())
	for i := range argTypes {
		argTypes[i] = fnType.In(i)
	}

	return &ResolvedProvider{
		Token:        token,
		Kind:         FactoryBinding,
		Dependencies: describeFunc(fnType, 0, params),
		Multi:        multi,
		produce: func(args []any) (any, error) {
			values, err := adaptArgs(args, argTypes)
			if err != nil {
				return nil, err
			}
			return callFactory(fnVal, values)
		},
		source: funcName(fnVal),
	}, nil
}

func resolveFactoryMethod(token Token, unit any, method any, params []ParamSpec, multi bool) (*ResolvedProvider, error) {
	if unit == nil {
		return nil, newProviderError(KindInvalidProvider, "factory method for %s has no unit", token)
	}

	var (
		recvType   reflect.Type
		recvValue  reflect.Value
		recvFields []injectedField
		isClass    bool
		err        error
	)
	if typ, ok := unit.(reflect.Type); ok {
		if !isClassType(typ) {
			return nil, newProviderError(KindInvalidProvider, "factory unit %s for %s must be a struct type or a value", reflectutils.TypeName(typ), token)
		}
		if recvFields, err = classFields(typ, nil); err != nil {
			return nil, err
		}
		recvType, isClass = typ, true
	} else {
		recvValue = reflect.ValueOf(unit)
		recvType = recvValue.Type()
	}

	name, bound, err := factoryMethodName(recvType, method)
	if err != nil {
		return nil, err
	}
	source := reflectutils.TypeName(recvType) + "." + name
	if bound.IsValid() {
		// a method value carries its own receiver, the unit only declares its type
		rec, err := resolveFactory(token, bound.Interface(), params, multi)
		if err != nil {
			return nil, err
		}
		rec.source = source
		return rec, nil
	}
	m, _ := recvType.MethodByName(name)
	if err := validateFactorySignature(m.Type, 1, params); err != nil {
		return nil, newProviderError(KindInvalidProvider, "factory %s for %s: %v", source, token, err)
	}

	var (
		nbRecvDeps = len(recvFields)
		deps       = append(describeFields(recvFields, nil), describeFunc(m.Type, 1, params)...)
		argTypes   = make([]reflect.Type, 0, len(deps))
	)
	for _, field := range recvFields {
		argTypes = append(argTypes, field.typ)
	}
	for i := 1; i < m.Type.NumIn(); i++ {
		argTypes = append(argTypes, m.Type.In(i))
	}

	return &ResolvedProvider{
		Token:        token,
		Kind:         FactoryBinding,
		Dependencies: deps,
		Multi:        multi,
		produce: func(args []any) (any, error) {
			values, err := adaptArgs(args, argTypes)
			if err != nil {
				return nil, err
			}
			recv := recvValue
			if isClass {
				built, err := safely(func() (any, error) {
					instance, err := newClassInstance(recvType, recvFields, values[:nbRecvDeps])
					if err != nil {
						return nil, err
					}
					return instance.Interface(), nil
				})
				if err != nil {
					return nil, fmt.Errorf("failed to construct factory unit %s:\n\t%w", reflectutils.TypeName(recvType), err)
				}
				recv = reflect.ValueOf(built)
			}
			return callFactory(m.Func, append([]reflect.Value{recv}, values[nbRecvDeps:]...))
		},
		source: source,
	}, nil
}

// factoryMethodName checks that method designates a method of recvType and returns its name.
// The method is given by name, or as a method expression, or as a method value: the bound
// function is then returned as well. Methods promoted from embedded fields belong to the
// method set of recvType, so they are accepted.
func factoryMethodName(recvType reflect.Type, method any) (string, reflect.Value, error) {
	switch m := method.(type) {
	case string:
		if _, found := recvType.MethodByName(m); !found {
			return "", reflect.Value{}, newProviderError(KindCannotFindMethodInClass, "%s has no method %q", reflectutils.TypeName(recvType), m)
		}
		return m, reflect.Value{}, nil
	case nil:
		return "", reflect.Value{}, newProviderError(KindInvalidProvider, "factory method of %s is nil", reflectutils.TypeName(recvType))
	}

	fnVal := reflect.ValueOf(method)
	if fnVal.Kind() != reflect.Func || fnVal.IsNil() {
		return "", reflect.Value{}, newProviderError(KindInvalidProvider, "factory method of %s must be a method name or a method expression, got %T", reflectutils.TypeName(recvType), method)
	}

	fullName := runtime.FuncForPC(fnVal.Pointer()).Name()
	bound := strings.HasSuffix(fullName, "-fm")
	qualified := strings.TrimSuffix(fullName, "-fm")
	name := qualified[strings.LastIndex(qualified, ".")+1:]
	notAMethod := newProviderError(KindCannotFindFactoryAsMethod, "%s is not a method of %s", fullName, reflectutils.TypeName(recvType))

	if _, found := recvType.MethodByName(name); !found {
		return "", reflect.Value{}, notAMethod
	}
	if bound {
		if !isMethodOf(qualified, recvType, name) {
			return "", reflect.Value{}, notAMethod
		}
		return name, fnVal, nil
	}
	fnType := fnVal.Type()
	if fnType.NumIn() == 0 || fnType.In(0) != recvType {
		return "", reflect.Value{}, notAMethod
	}
	return name, reflect.Value{}, nil
}

// isMethodOf tells if the runtime name of a method value designates the method name of typ,
// declared on the value or on the pointer receiver.
func isMethodOf(qualified string, typ reflect.Type, name string) bool {
	base := typ
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	prefix := base.PkgPath() + "."
	return qualified == prefix+base.Name()+"."+name ||
		qualified == prefix+"(*"+base.Name()+")."+name
}

// validateFactorySignature checks the factory returns T or (T, error). The first `from`
// parameters (a method receiver) are not dependencies.
func validateFactorySignature(fnType reflect.Type, from int, params []ParamSpec) error {
	if fnType.IsVariadic() {
		return fmt.Errorf("variadic factories are not supported")
	}
	if fnType.NumOut() != 1 && fnType.NumOut() != 2 {
		return fmt.Errorf("factory must either return the instance and an error, or just the instance")
	}
	if fnType.NumOut() == 2 && fnType.Out(1) != ErrorType {
		return fmt.Errorf("if factory returns two elements, it must return an error as the second element")
	}
	if len(params) > fnType.NumIn()-from {
		return fmt.Errorf("%d parameter specs given for %d parameters", len(params), fnType.NumIn()-from)
	}
	return nil
}

func callFactory(fn reflect.Value, args []reflect.Value) (any, error) {
	return safely(func() (any, error) {
		results := fn.Call(args)
		if len(results) == 2 && !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}
		return results[0].Interface(), nil
	})
}

// safely runs a binding, turning a panic into an error.
func safely(build func() (any, error)) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", rErr)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return build()
}

func adaptArgs(args []any, types []reflect.Type) ([]reflect.Value, error) {
	values := make([]reflect.Value, len(args))
	for i, arg := range args {
		value, err := adaptArg(arg, types[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = value
	}
	return values, nil
}

// adaptArg converts a resolved value to a parameter type: nil becomes the zero value, and the
// []any collection of a multi token can feed any slice type.
func adaptArg(arg any, typ reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(typ), nil
	}
	val := reflect.ValueOf(arg)
	if val.Type().AssignableTo(typ) {
		return val, nil
	}
	if items, ok := arg.([]any); ok && typ.Kind() == reflect.Slice {
		slice := reflect.MakeSlice(typ, len(items), len(items))
		for i, item := range items {
			itemVal, err := adaptArg(item, typ.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			slice.Index(i).Set(itemVal)
		}
		return slice, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", reflectutils.TypeName(val.Type()), reflectutils.TypeName(typ))
}

func funcName(fn reflect.Value) string {
	return filepath.Base(runtime.FuncForPC(fn.Pointer()).Name())
}
