// Command injectgen generates the injection bindings of a package.
//
// Functions documented with @inject get a package variable wrapping them with
// blackmagic.MustInject. Their parameters commented with @depends get a binding:
//
//	// GetUser loads a user.
//	// @inject named="users.get"
//	func GetUser(
//		ctx context.Context,
//		repo *UserRepository, // @depends factory=NewUserRepository
//		log *Logger, // @depends cached=false
//	) (*User, error)
//
// Properties of @depends are factory, cached, ref (the factory returns a depends.Ref),
// async (resolve through depends.Task) and default (allow default construction).
// Run it through go:generate; it writes <file>_gen.go next to the file invoking it.
package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/set"
	"github.com/a-peyrard/blackmagic/slices"
	"github.com/rs/zerolog"
	"golang.org/x/tools/go/packages"
)

const (
	injectAnnotationTag  = "@inject"
	dependsAnnotationTag = "@depends"
)

func outputPathFor(dir, targetFile string) string {
	if targetFile == "" {
		return filepath.Join(dir, "inject_gen.go")
	}
	return filepath.Join(dir, strings.TrimSuffix(filepath.Base(targetFile), ".go")+"_gen.go")
}

func isGenerated(path string) bool {
	return strings.HasSuffix(path, "_gen.go")
}

// merge folds the scans of every file of one package together.
func merge(scans []fileScan) fileScan {
	merged := fileScan{Imports: set.New[string]()}
	for _, scan := range scans {
		if merged.Package == "" {
			merged.Package = scan.Package
		}
		merged.Injects = append(merged.Injects, scan.Injects...)
		for _, spec := range scan.Imports.ToSlice() {
			merged.Imports.Add(spec)
		}
	}
	return merged
}

func main() {
	dryRun := os.Getenv("DRY_RUN") == "true"

	level, err := logging.LevelFromEnv("INJECTGEN_LOG_LEVEL")
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := logging.New(level, logging.WithoutCaller())

	startScan := time.Now()

	targetFile := os.Getenv("GOFILE")
	currentDir, _ := os.Getwd()

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
		Dir:  currentDir,
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load the package")
	}
	if len(pkgs) != 1 {
		logger.Fatal().Int("packages", len(pkgs)).Msg("Expected exactly one package in the current directory")
	}
	pkg := pkgs[0]
	for _, pkgErr := range pkg.Errors {
		logger.Warn().Str("error", pkgErr.Error()).Msg("Package loaded with errors")
	}

	pkgLogger := logger.With().Str("package", pkg.PkgPath).Logger()
	pkgLogger.Debug().Msg("Scanning package")
	var scans []fileScan
	for _, file := range pkg.Syntax {
		path := pkg.Fset.Position(file.Pos()).Filename
		if isGenerated(path) {
			continue
		}
		fileLogger := pkgLogger.With().Str("file", filepath.Base(path)).Logger()
		scans = append(scans, scanFile(&fileLogger, pkg.Fset, file))
	}
	scan := merge(scans)
	if scan.Package == "" {
		scan.Package = pkg.Name
	}

	stopScan := time.Now()

	logger.Info().Msgf("🎯 %d injected functions found in %s", len(scan.Injects), pkg.PkgPath)
	definitionsLogs := slices.Map(scan.Injects, InjectDefinition.String)
	logger.Debug().Msgf("Injected functions:\n%s", strings.Join(definitionsLogs, "\n----\n"))
	logger.Info().Msgf("🕵️‍♂️ Scanning completed in %s", stopScan.Sub(startScan))

	if len(scan.Injects) == 0 {
		logger.Warn().Msg("Nothing to generate")
		return
	}

	outputPath := outputPathFor(currentDir, targetFile)
	if dryRun {
		outputPath = filepath.Join(os.TempDir(), filepath.Base(outputPath))
	}

	if err := generateCode(outputPath, scan); err != nil {
		logger.Fatal().Err(err).Msgf("Failed to generate code in %s", outputPath)
	}
	logger.Info().Msgf("✅ Code generated successfully in %s", outputPath)
}

