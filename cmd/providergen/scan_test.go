package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registrySource = `package app

import (
	"github.com/a-peyrard/injector"
)

//go:generate go run github.com/a-peyrard/injector/cmd/providergen

type Registry struct {
	injector.EmptyRegistry
}

var ConfigToken = injector.NewToken("config")

// NewEngine builds the engine.
// @provider
func NewEngine() *Engine { return &Engine{} }

// @provider token=PluginsToken multi=true
func newPlugin(
	engine *Engine,
	config *Config, // @inject token=ConfigToken optional=true
	a, b *Wheel,
) *Plugin {
	return nil
}

// @provider
func (r Registry) Method() *Engine { return nil }

// NotAProvider has no annotation.
func NotAProvider() *Engine { return nil }

// Car is assembled by the container.
// @injectable
type Car struct {
	Engine *Engine
}

type (
	// @injectable token=WheelToken multi=true
	Wheel struct{}
	Plain struct{}
)
`

func parseSource(t *testing.T, source string) (*token.FileSet, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "registry.go", source, parser.ParseComments)
	require.NoError(t, err)
	return fset, file
}

func Test_scanFile(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("it should find the registry in the target file", func(t *testing.T) {
		// GIVEN
		fset, file := parseSource(t, registrySource)
		result := &scanResult{}

		// WHEN
		scanFile(&logger, fset, file, "example.com/app", true, result)

		// THEN
		require.NotNil(t, result.registry)
		assert.Equal(t, RegistryDefinition{PackageName: "app", StructName: "Registry", ImportPath: "example.com/app"}, *result.registry)
	})

	t.Run("it should ignore the registry of other files", func(t *testing.T) {
		// GIVEN
		fset, file := parseSource(t, registrySource)
		result := &scanResult{}

		// WHEN
		scanFile(&logger, fset, file, "example.com/app", false, result)

		// THEN
		assert.Nil(t, result.registry)
		assert.Len(t, result.providers, 2)
	})

	t.Run("it should collect annotated functions", func(t *testing.T) {
		// GIVEN
		fset, file := parseSource(t, registrySource)
		result := &scanResult{}

		// WHEN
		scanFile(&logger, fset, file, "example.com/app", true, result)

		// THEN
		require.Len(t, result.providers, 2)

		engine := result.providers[0]
		assert.Equal(t, "NewEngine", engine.FnName)
		assert.Equal(t, "NewEngine builds the engine.", engine.Description)
		assert.Equal(t, "example.com/app", engine.ImportPath)
		assert.Empty(t, engine.Token)
		assert.False(t, engine.Multi)
		assert.Empty(t, engine.Dependencies)

		plugin := result.providers[1]
		assert.Equal(t, "newPlugin", plugin.FnName)
		assert.Equal(t, "PluginsToken", plugin.Token)
		assert.True(t, plugin.Multi)
		require.Len(t, plugin.Dependencies, 4)
		assert.True(t, plugin.Dependencies[0].IsEmpty())
		configToken, found := plugin.Dependencies[1].Token()
		assert.True(t, found)
		assert.Equal(t, "ConfigToken", configToken)
		assert.True(t, plugin.Dependencies[1].Optional())
		assert.True(t, plugin.Dependencies[2].IsEmpty())
		assert.True(t, plugin.Dependencies[3].IsEmpty())
	})

	t.Run("it should collect annotated structs", func(t *testing.T) {
		// GIVEN
		fset, file := parseSource(t, registrySource)
		result := &scanResult{}

		// WHEN
		scanFile(&logger, fset, file, "example.com/app", true, result)

		// THEN
		assert.Equal(t, []InjectableDefinition{
			{TypeName: "Car", Description: "Car is assembled by the container.", ImportPath: "example.com/app"},
			{TypeName: "Wheel", ImportPath: "example.com/app", Token: "WheelToken", Multi: true},
		}, result.injectables)
	})

	t.Run("it should follow the import name of the injector package", func(t *testing.T) {
		// GIVEN
		fset, file := parseSource(t, `package app

import di "github.com/a-peyrard/injector"

type Providers struct {
	di.EmptyRegistry
}
`)
		result := &scanResult{}

		// WHEN
		scanFile(&logger, fset, file, "example.com/app", true, result)

		// THEN
		require.NotNil(t, result.registry)
		assert.Equal(t, "Providers", result.registry.StructName)
	})

	t.Run("it should not find a registry without the injector import", func(t *testing.T) {
		// GIVEN
		fset, file := parseSource(t, `package app

import injector "example.com/other"

type Registry struct {
	injector.EmptyRegistry
}
`)
		result := &scanResult{}

		// WHEN
		scanFile(&logger, fset, file, "example.com/app", true, result)

		// THEN
		assert.Nil(t, result.registry)
	})
}

func Test_visibleFrom(t *testing.T) {
	t.Run("it should drop unexported definitions of other packages", func(t *testing.T) {
		// GIVEN
		logger := zerolog.Nop()
		registry := &RegistryDefinition{PackageName: "app", StructName: "Registry", ImportPath: "example.com/app"}
		result := &scanResult{
			registry: registry,
			providers: []ProviderDefinition{
				{FnName: "newLocal", ImportPath: "example.com/app"},
				{FnName: "newHidden", ImportPath: "example.com/app/engine"},
				{FnName: "NewEngine", ImportPath: "example.com/app/engine"},
			},
			injectables: []InjectableDefinition{
				{TypeName: "hidden", ImportPath: "example.com/app/engine"},
				{TypeName: "Car", ImportPath: "example.com/app/engine"},
			},
		}

		// WHEN
		visibleFrom(&logger, registry, result)

		// THEN
		assert.Equal(t, []ProviderDefinition{
			{FnName: "newLocal", ImportPath: "example.com/app"},
			{FnName: "NewEngine", ImportPath: "example.com/app/engine"},
		}, result.providers)
		assert.Equal(t, []InjectableDefinition{
			{TypeName: "Car", ImportPath: "example.com/app/engine"},
		}, result.injectables)
	})
}
