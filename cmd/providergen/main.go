package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/a-peyrard/injector/config"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

func findModuleRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("no go.mod found in the parent directories")
		}
		dir = parent
	}
}

// modulePath reads the module path declared in the go.mod of moduleRoot.
func modulePath(moduleRoot string) (string, error) {
	goMod := filepath.Join(moduleRoot, "go.mod")
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %w", goMod, err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("no module directive in %s", goMod)
	}
	return path, nil
}

// importPathOf maps a directory of the module to its package import path.
func importPathOf(modulePath string, moduleRoot string, dir string) (string, error) {
	rel, err := filepath.Rel(moduleRoot, dir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return modulePath, nil
	}
	return modulePath + "/" + filepath.ToSlash(rel), nil
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(settings.Level()).
		With().
		Timestamp().
		Logger()

	dryRun := settings.DryRun || os.Getenv("DRY_RUN") == "true"
	if err := run(&logger, os.Getenv("GOFILE"), dryRun); err != nil {
		logger.Error().Err(err).Msg("Failed to generate providers")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger, targetFile string, dryRun bool) error {
	if targetFile == "" {
		return errors.New("GOFILE is not set, providergen must be invoked through go generate")
	}

	startScan := time.Now()

	// capture the target file, where the generator is invoked
	currentDir, err := os.Getwd()
	if err != nil {
		return err
	}
	targetFilePath := filepath.Join(currentDir, targetFile)

	moduleRoot, err := findModuleRoot(currentDir)
	if err != nil {
		return err
	}
	module, err := modulePath(moduleRoot)
	if err != nil {
		return err
	}
	targetImportPath, err := importPathOf(module, moduleRoot, currentDir)
	if err != nil {
		return err
	}

	// the whole module is scanned, not only the target package
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
		Dir:  moduleRoot,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return fmt.Errorf("failed to load the packages of %s: %w", module, err)
	}
	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].PkgPath < pkgs[j].PkgPath
	})

	result := &scanResult{}
	for _, pkg := range pkgs {
		logger := logger.With().Str("package", pkg.PkgPath).Logger()
		logger.Debug().Msg("Scanning package")
		for _, pkgErr := range pkg.Errors {
			logger.Warn().Msg(pkgErr.Error())
		}
		for _, file := range pkg.Syntax {
			filePath := pkg.Fset.Position(file.Pos()).Filename
			scanFile(&logger, pkg.Fset, file, pkg.PkgPath, filePath == targetFilePath, result)
		}
	}

	if result.registry == nil {
		return fmt.Errorf(
			"no registry struct found in %s, make sure you have a struct like this:\ntype Registry struct {\n    injector.EmptyRegistry\n}",
			targetFile,
		)
	}
	if result.registry.ImportPath != targetImportPath {
		logger.Warn().
			Str("expected", targetImportPath).
			Str("actual", result.registry.ImportPath).
			Msg("Registry import path differs from the module layout")
	}
	visibleFrom(logger, result.registry, result)

	logger.Info().Msgf("👨‍🔧 Registry found: %+v", *result.registry)
	logger.Info().Msgf("🎯 %d providers found in the module", len(result.providers))
	logger.Debug().Msgf("Providers:\n%s", joinDefinitions(result.providers))
	logger.Info().Msgf("🎯 %d injectables found in the module", len(result.injectables))
	logger.Debug().Msgf("Injectables:\n%s", joinDefinitions(result.injectables))
	logger.Info().Msgf("🕵️‍♂️ Scanning completed in %s", time.Since(startScan))

	outputPath := filepath.Join(
		filepath.Dir(targetFilePath),
		strings.TrimSuffix(filepath.Base(targetFilePath), ".go")+"_gen.go",
	)
	if dryRun {
		outputPath = filepath.Join(os.TempDir(), filepath.Base(outputPath))
	}

	if err := generateCode(outputPath, result.registry, result.providers, result.injectables); err != nil {
		return fmt.Errorf("failed to generate code in %s: %w", outputPath, err)
	}
	logger.Info().Msgf("✅ Code generated successfully in %s", outputPath)

	printSummary(os.Stderr, result, outputPath, dryRun)
	return nil
}

func joinDefinitions[T fmt.Stringer](definitions []T) string {
	lines := make([]string, len(definitions))
	for i, definition := range definitions {
		lines[i] = definition.String()
	}
	return strings.Join(lines, "\n----\n")
}

func printSummary(w io.Writer, result *scanResult, outputPath string, dryRun bool) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	bold.Fprintf(w, "%s.%s\n", result.registry.PackageName, result.registry.StructName)
	for _, provider := range result.providers {
		green.Fprint(w, "  + ")
		fmt.Fprintf(w, "%s.%s\n", provider.ImportPath, provider.FnName)
	}
	for _, injectable := range result.injectables {
		green.Fprint(w, "  + ")
		fmt.Fprintf(w, "%s.%s\n", injectable.ImportPath, injectable.TypeName)
	}
	if dryRun {
		yellow.Fprintf(w, "dry run, written to %s\n", outputPath)
	}
}
