package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const injectorImportPath = "github.com/a-peyrard/injector"

type (
	// ProviderDefinition is a factory function annotated with @provider.
	ProviderDefinition struct {
		FnName      string
		Description string
		ImportPath  string

		// Token is the name of a token variable declared in the provider package. Empty to bind
		// the function to its result type.
		Token string
		Multi bool

		Dependencies []InjectAnnotation
	}

	// InjectableDefinition is a struct type annotated with @injectable.
	InjectableDefinition struct {
		TypeName    string
		Description string
		ImportPath  string

		Token string
		Multi bool
	}

	// RegistryDefinition is the struct embedding injector.EmptyRegistry that receives the
	// generated Providers method.
	RegistryDefinition struct {
		PackageName string
		StructName  string
		ImportPath  string
	}

	scanResult struct {
		registry    *RegistryDefinition
		providers   []ProviderDefinition
		injectables []InjectableDefinition
	}
)

func (p ProviderDefinition) String() string {
	deps := make([]string, len(p.Dependencies))
	for i, dep := range p.Dependencies {
		deps[i] = dep.String()
	}
	return fmt.Sprintf(
		`✨ Provider: %s
Description: %s
Import Path: %s
Token: %s
Multi: %t
Dependencies: [%s]`,
		p.FnName,
		p.Description,
		p.ImportPath,
		p.Token,
		p.Multi,
		strings.Join(deps, ", "),
	)
}

func (i InjectableDefinition) String() string {
	return fmt.Sprintf(
		`🧩 Injectable: %s
Import Path: %s
Token: %s
Multi: %t`,
		i.TypeName,
		i.ImportPath,
		i.Token,
		i.Multi,
	)
}

// scanFile collects the annotated providers and injectables of file. The registry is only
// looked for in the file triggering the generation.
func scanFile(logger *zerolog.Logger, fset *token.FileSet, file *ast.File, importPath string, isTarget bool, result *scanResult) {
	if isTarget {
		if registry := findRegistry(file); registry != nil {
			logger.Debug().Str("struct", registry.StructName).Msg("=> Found registry")
			registry.ImportPath = importPath
			result.registry = registry
		}
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil || d.Doc == nil || !containsTag(d.Doc.Text(), providerAnnotationTag) {
				continue
			}
			logger := logger.With().Str("provider", d.Name.Name).Logger()
			logger.Debug().Msg("=> Found provider")
			result.providers = append(result.providers, providerDefinition(&logger, fset, file, importPath, d))

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if _, isStruct := typeSpec.Type.(*ast.StructType); !isStruct {
					continue
				}
				doc := typeSpec.Doc
				if doc == nil && len(d.Specs) == 1 {
					doc = d.Doc
				}
				if doc == nil || !containsTag(doc.Text(), injectableAnnotationTag) {
					continue
				}

				logger := logger.With().Str("struct", typeSpec.Name.Name).Logger()
				logger.Debug().Msg("=> Found injectable")
				annotation := parseProviderAnnotation(&logger, doc.Text(), injectableAnnotationTag)
				warnUnknown(&logger, annotation.UnknownProperties())
				tok, _ := annotation.Token()
				result.injectables = append(result.injectables, InjectableDefinition{
					TypeName:    typeSpec.Name.Name,
					Description: annotation.description,
					ImportPath:  importPath,
					Token:       tok,
					Multi:       annotation.Multi(),
				})
			}
		}
	}
}

func providerDefinition(logger *zerolog.Logger, fset *token.FileSet, file *ast.File, importPath string, fn *ast.FuncDecl) ProviderDefinition {
	annotation := parseProviderAnnotation(logger, fn.Doc.Text(), providerAnnotationTag)
	warnUnknown(logger, annotation.UnknownProperties())

	var dependencies []InjectAnnotation
	if fn.Type.Params != nil {
		for idx, param := range fn.Type.Params.List {
			names := len(param.Names)
			if names == 0 {
				names = 1
			}
			paramName := strconv.Itoa(idx)
			if len(param.Names) > 0 {
				paramName = param.Names[0].Name
			}
			paramLogger := logger.With().Str("param", paramName).Logger()
			dependency := parseInjectAnnotation(&paramLogger, findCommentForParam(fset, file, param))
			warnUnknown(&paramLogger, dependency.UnknownProperties())

			// `a, b *T // @inject ...` applies the comment to both
			for range names {
				dependencies = append(dependencies, dependency)
			}
		}
	}

	tok, _ := annotation.Token()
	return ProviderDefinition{
		FnName:       fn.Name.Name,
		Description:  annotation.description,
		ImportPath:   importPath,
		Token:        tok,
		Multi:        annotation.Multi(),
		Dependencies: dependencies,
	}
}

// findRegistry returns the first struct of file embedding injector.EmptyRegistry, whatever
// the name the injector package is imported under.
func findRegistry(file *ast.File) *RegistryDefinition {
	alias, imported := injectorImportName(file)
	if !imported {
		return nil
	}

	var registry *RegistryDefinition
	ast.Inspect(file, func(n ast.Node) bool {
		if registry != nil {
			return false
		}
		typeSpec, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		structType, ok := typeSpec.Type.(*ast.StructType)
		if !ok {
			return true
		}
		for _, field := range structType.Fields.List {
			if len(field.Names) != 0 {
				continue
			}
			sel, ok := field.Type.(*ast.SelectorExpr)
			if !ok {
				continue
			}
			if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == alias && sel.Sel.Name == "EmptyRegistry" {
				registry = &RegistryDefinition{
					PackageName: file.Name.Name,
					StructName:  typeSpec.Name.Name,
				}
				return false
			}
		}
		return true
	})
	return registry
}

func injectorImportName(file *ast.File) (string, bool) {
	for _, imp := range file.Imports {
		if strings.Trim(imp.Path.Value, `"`) != injectorImportPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name, true
		}
		return "injector", true
	}
	return "", false
}

func findCommentForParam(fset *token.FileSet, file *ast.File, param *ast.Field) string {
	paramLine := fset.Position(param.Pos()).Line

	for _, commentGroup := range file.Comments {
		for _, comment := range commentGroup.List {
			if fset.Position(comment.Pos()).Line == paramLine {
				return comment.Text
			}
		}
	}
	return ""
}

func containsTag(docText string, tag string) bool {
	for _, line := range strings.Split(docText, "\n") {
		if hasTag(strings.TrimSpace(line), tag) {
			return true
		}
	}
	return false
}

func warnUnknown(logger *zerolog.Logger, unknown []string) {
	if len(unknown) > 0 {
		logger.Warn().Strs("properties", unknown).Msg("Unknown annotation properties, ignoring them")
	}
}

// visibleFrom drops the definitions the registry package cannot reference: unexported names of
// other packages.
func visibleFrom(logger *zerolog.Logger, registry *RegistryDefinition, result *scanResult) {
	providers := result.providers[:0]
	for _, provider := range result.providers {
		if provider.ImportPath != registry.ImportPath && !ast.IsExported(provider.FnName) {
			logger.Warn().Str("provider", provider.FnName).Str("package", provider.ImportPath).Msg("Provider is not exported, skipping it")
			continue
		}
		providers = append(providers, provider)
	}
	result.providers = providers

	injectables := result.injectables[:0]
	for _, injectable := range result.injectables {
		if injectable.ImportPath != registry.ImportPath && !ast.IsExported(injectable.TypeName) {
			logger.Warn().Str("injectable", injectable.TypeName).Str("package", injectable.ImportPath).Msg("Injectable is not exported, skipping it")
			continue
		}
		injectables = append(injectables, injectable)
	}
	result.injectables = injectables
}
