package main

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/a-peyrard/injector/set"
)

const injectorAlias = "injector"

var registryTemplate = template.Must(template.New("registry").Parse(`// Code generated by providergen. DO NOT EDIT.

package {{ .PackageName }}

import (
	{{ .InjectorAlias }} "` + injectorImportPath + `"
{{- range .Imports }}
	{{ .Alias }} "{{ .Path }}"
{{- end }}
)

var _ {{ .InjectorAlias }}.Registry = {{ .StructName }}{}

// Providers returns the providers annotated in the module.
func ({{ .StructName }}) Providers() []any {
	return []any{
{{- range .Entries }}
{{- range .Comment }}
		// {{ . }}
{{- end }}
		{{ .Code }},
{{- end }}
	}
}
`))

type (
	importSpec struct {
		Alias string
		Path  string
	}

	entry struct {
		Comment []string
		Code    string
	}

	registryFile struct {
		PackageName   string
		StructName    string
		InjectorAlias string
		Imports       []importSpec
		Entries       []entry
	}

	// renderer qualifies the names of other packages while rendering entries, allocating one
	// alias per import path.
	renderer struct {
		registry        *RegistryDefinition
		aliases         set.Set[string]
		importWithAlias map[string]string
	}
)

func newRenderer(registry *RegistryDefinition) *renderer {
	return &renderer{
		registry:        registry,
		aliases:         set.NewWithValues(injectorAlias),
		importWithAlias: make(map[string]string),
	}
}

func generateCode(outputPath string, registry *RegistryDefinition, providers []ProviderDefinition, injectables []InjectableDefinition) error {
	source, err := renderRegistry(registry, providers, injectables)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, source, 0o644)
}

// renderRegistry produces the gofmt-ed source of the Providers method of registry.
func renderRegistry(registry *RegistryDefinition, providers []ProviderDefinition, injectables []InjectableDefinition) ([]byte, error) {
	r := newRenderer(registry)

	data := registryFile{
		PackageName:   registry.PackageName,
		StructName:    registry.StructName,
		InjectorAlias: injectorAlias,
	}
	for _, provider := range providers {
		data.Entries = append(data.Entries, r.providerEntry(provider))
	}
	for _, injectable := range injectables {
		data.Entries = append(data.Entries, r.injectableEntry(injectable))
	}
	for path, alias := range r.importWithAlias {
		data.Imports = append(data.Imports, importSpec{Alias: alias, Path: path})
	}
	sort.Slice(data.Imports, func(i, j int) bool {
		return data.Imports[i].Path < data.Imports[j].Path
	})

	var buf bytes.Buffer
	if err := registryTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render registry %s: %w", registry.StructName, err)
	}
	source, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code:\n%s\n%w", buf.String(), err)
	}
	return source, nil
}

func (r *renderer) providerEntry(provider ProviderDefinition) entry {
	fn := r.qualify(provider.ImportPath, provider.FnName)

	params := r.params(provider.ImportPath, provider.Dependencies)
	if provider.Token == "" && !provider.Multi && len(params) == 0 {
		return entry{Comment: comment(provider.Description), Code: fn}
	}

	token := injectorAlias + ".ResultToken(" + fn + ")"
	if provider.Token != "" {
		token = r.qualify(provider.ImportPath, provider.Token)
	}
	factory := injectorAlias + ".UseFactory(" + strings.Join(append([]string{fn}, params...), ", ") + ")"

	return entry{
		Comment: comment(provider.Description),
		Code:    provide(token, factory, provider.Multi),
	}
}

func (r *renderer) injectableEntry(injectable InjectableDefinition) entry {
	typeName := r.qualify(injectable.ImportPath, injectable.TypeName)
	class := injectorAlias + ".Class[" + typeName + "]()"
	if injectable.Token == "" && !injectable.Multi {
		return entry{Comment: comment(injectable.Description), Code: class}
	}

	token := injectorAlias + ".Type[*" + typeName + "]()"
	if injectable.Token != "" {
		token = r.qualify(injectable.ImportPath, injectable.Token)
	}

	return entry{
		Comment: comment(injectable.Description),
		Code:    provide(token, injectorAlias+".UseClass("+class+")", injectable.Multi),
	}
}

// params renders one Param per parameter, up to the last annotated one.
func (r *renderer) params(importPath string, dependencies []InjectAnnotation) []string {
	last := -1
	for i, dependency := range dependencies {
		if !dependency.IsEmpty() {
			last = i
		}
	}

	params := make([]string, 0, last+1)
	for _, dependency := range dependencies[:last+1] {
		var modifiers []string
		if token, found := dependency.Token(); found {
			modifiers = append(modifiers, injectorAlias+".Inject.Token("+r.qualify(importPath, token)+")")
		}
		if dependency.Optional() {
			modifiers = append(modifiers, injectorAlias+".Inject.Optional()")
		}
		if dependency.SkipSelf() {
			modifiers = append(modifiers, injectorAlias+".Inject.SkipSelf()")
		}
		if dependency.Self() {
			modifiers = append(modifiers, injectorAlias+".Inject.Self()")
		}
		params = append(params, injectorAlias+".Param("+strings.Join(modifiers, ", ")+")")
	}
	return params
}

// qualify prefixes name with the alias of importPath, unless it is declared in the registry
// package.
func (r *renderer) qualify(importPath string, name string) string {
	if importPath == r.registry.ImportPath {
		return generateFQN("", name, r.importWithAlias)
	}
	if _, found := r.importWithAlias[importPath]; !found {
		alias := findSuitableAlias(importPath, r.aliases)
		r.aliases.Add(alias)
		r.importWithAlias[importPath] = alias
	}
	return generateFQN(importPath, name, r.importWithAlias)
}

func provide(token string, option string, multi bool) string {
	args := []string{token, option}
	if multi {
		args = append(args, injectorAlias+".AsMulti()")
	}
	return injectorAlias + ".Provide(" + strings.Join(args, ", ") + ")"
}

func comment(description string) []string {
	if description == "" {
		return nil
	}
	return strings.Split(description, "\n")
}

func generateFQN(importPath string, typeName string, importWithAlias map[string]string) string {
	if importPath == "" {
		return typeName
	}
	name := strings.TrimPrefix(typeName, "*")
	pointer := strings.Repeat("*", len(typeName)-len(name))
	return pointer + importWithAlias[importPath] + "." + name
}

// findSuitableAlias names an import after the last element of pkg, prepending the initials of
// the previous elements, then a counter, until the alias is free.
func findSuitableAlias(pkg string, aliases set.Set[string]) string {
	taken := aliases.Contains

	elements := strings.Split(pkg, "/")
	alias := sanitizeIdentifier(elements[len(elements)-1])
	for i := len(elements) - 2; taken(alias) && i >= 0; i-- {
		alias = sanitizeIdentifier(elements[i])[:1] + alias
	}
	if !taken(alias) {
		return alias
	}

	for counter := 0; ; counter++ {
		if candidate := alias + strconv.Itoa(counter); !taken(candidate) {
			return candidate
		}
	}
}

func sanitizeIdentifier(element string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(element) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	identifier := b.String()
	if identifier == "" {
		return "pkg"
	}
	if unicode.IsDigit(rune(identifier[0])) {
		return "p" + identifier
	}
	if token.IsKeyword(identifier) {
		return identifier + "pkg"
	}
	return identifier
}
