package injector

import (
	"fmt"
	"reflect"

	"github.com/a-peyrard/injector/option"
)

type (
	// Binding is an explicit provider declaration: a token, and exactly one way of producing a
	// value for it. Bindings are built with Provide and turned into ResolvedProvider records by
	// Normalize.
	Binding struct {
		Token Token

		multi bool
		uses  []BindingKind

		value    any
		class    reflect.Type
		fields   []FieldSpec
		existing Token
		factory  any
		unit     any
		method   any
		params   []ParamSpec
	}

	// BindingOption configures a Binding.
	BindingOption = option.Option[Binding]
)

// Provide declares a binding for token.
//
//	injector.Provide(injector.Type[*Engine](), injector.UseClass(injector.Class[Engine]()))
//	injector.Provide(PluginsToken, injector.UseValue(plugin), injector.AsMulti())
func Provide(token Token, opts ...BindingOption) *Binding {
	return option.Build(&Binding{Token: token}, opts...)
}

// UseValue binds a fixed value, nil included.
func UseValue(value any) BindingOption {
	return func(b *Binding) {
		b.uses = append(b.uses, ValueBinding)
		b.value = value
	}
}

// UseClass binds a struct type, built by injecting its `inject` tagged fields. Pass a pointer
// type (see Class) to get *T instances.
func UseClass(typ reflect.Type, fields ...FieldSpec) BindingOption {
	return func(b *Binding) {
		b.uses = append(b.uses, ClassBinding)
		b.class = typ
		b.fields = fields
	}
}

// UseExisting makes the token an alias of another token.
func UseExisting(token Token) BindingOption {
	return func(b *Binding) {
		b.uses = append(b.uses, AliasBinding)
		b.existing = token
	}
}

// UseFactory binds a function returning either the value, or the value and an error.
// Params optionally stack modifiers on the function parameters, positionally.
func UseFactory(fn any, params ...ParamSpec) BindingOption {
	return func(b *Binding) {
		b.uses = append(b.uses, FactoryBinding)
		b.factory = fn
		b.params = params
	}
}

// UseFactoryMethod binds a method of unit as the factory. The unit is either a receiver value
// or a class type (built like a UseClass binding first). The method is either its name, a
// method expression such as (*Service).Build, or a method value such as service.Build, which is
// called on its own bound receiver. Methods promoted from embedded fields are accepted.
func UseFactoryMethod(unit any, method any, params ...ParamSpec) BindingOption {
	return func(b *Binding) {
		b.uses = append(b.uses, FactoryBinding)
		b.unit = unit
		b.method = method
		b.params = params
	}
}

// AsMulti accumulates this binding with every other multi binding of the same token.
func AsMulti() BindingOption {
	return func(b *Binding) {
		b.multi = true
	}
}

func (b *Binding) String() string {
	uses := "?"
	if len(b.uses) == 1 {
		uses = b.uses[0].String()
	}
	return fmt.Sprintf("{token=%v use=%s multi=%t}", b.Token, uses, b.multi)
}
