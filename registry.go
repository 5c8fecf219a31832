package injector

type (
	// Registry exposes a list of raw providers. Registries can be given to Normalize as raw
	// entries. The providergen command generates the Providers method of registries.
	Registry interface {
		Providers() []any
	}

	// EmptyRegistry is meant to be embedded by the struct that providergen targets.
	EmptyRegistry struct{}
)

func (EmptyRegistry) Providers() []any {
	return nil
}
