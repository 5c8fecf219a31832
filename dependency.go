package injector

import (
	"fmt"
	"strings"
)

// Inject is used as a namespace for dependency modifiers.
var Inject = &injectBuilder{}

type (
	// Dependency describes how one parameter (or injected field) of a constructible unit is
	// resolved: the token to look up, and the modifiers applied to that lookup.
	Dependency struct {
		Token Token

		// Optional turns a missing provider for this slot into an absent (zero) value.
		Optional bool
		// SkipSelf starts the lookup at the parent container.
		SkipSelf bool
		// Self restricts the lookup to the current container.
		Self bool
	}

	// Modifier alters a Dependency. Modifiers are applied in order, so for single-valued
	// properties (token, visibility) the last one wins.
	Modifier func(d *Dependency)

	// ParamSpec is the ordered list of modifiers stacked on one parameter.
	ParamSpec []Modifier

	injectBuilder struct{}
)

// Param stacks modifiers for one positional parameter.
func Param(modifiers ...Modifier) ParamSpec {
	return modifiers
}

// Token requests the given token instead of the one inferred from the parameter type.
func (i *injectBuilder) Token(token Token) Modifier {
	return func(d *Dependency) {
		d.Token = token
	}
}

func (i *injectBuilder) Optional() Modifier {
	return func(d *Dependency) {
		d.Optional = true
	}
}

func (i *injectBuilder) SkipSelf() Modifier {
	return func(d *Dependency) {
		d.SkipSelf = true
		d.Self = false
	}
}

func (i *injectBuilder) Self() Modifier {
	return func(d *Dependency) {
		d.Self = true
		d.SkipSelf = false
	}
}

func (p ParamSpec) apply(d Dependency) Dependency {
	for _, modifier := range p {
		if modifier != nil {
			modifier(&d)
		}
	}
	return d
}

func (d Dependency) String() string {
	var flags []string
	if d.Optional {
		flags = append(flags, "optional")
	}
	if d.SkipSelf {
		flags = append(flags, "skipSelf")
	}
	if d.Self {
		flags = append(flags, "self")
	}
	if len(flags) == 0 {
		return fmt.Sprint(d.Token)
	}
	return fmt.Sprintf("%s [%s]", d.Token, strings.Join(flags, ","))
}
