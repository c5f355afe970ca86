package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"strings"
	"text/template"

	"github.com/a-peyrard/blackmagic/set"
)

const (
	blackmagicImport = `"github.com/a-peyrard/blackmagic"`
	dependsImport    = `"github.com/a-peyrard/blackmagic/depends"`
)

var outputTemplate = template.Must(template.New("injectgen").Parse(`// Code generated by injectgen. DO NOT EDIT.

package {{ .Package }}

import (
{{- range .Imports }}
	{{ . }}
{{- end }}
)

var (
{{- range .Injects }}

	// {{ .VarName }} is {{ .FnName }} with its dependencies injected.
	{{ .VarName }} = blackmagic.MustInject(
		{{ .FnName }},
{{- range .Params }}
		{{ .Option }},
{{- end }}
{{- if .Named }}
		blackmagic.Named({{ printf "%q" .Named }}),
{{- end }}
	)
{{- end }}
)
`))

type outputData struct {
	Package string
	Imports []string
	Injects []InjectDefinition
}

// render produces the formatted source of the generated file.
func render(scan fileScan) ([]byte, error) {
	extra := set.New[string]()
	for _, spec := range scan.Imports.ToSlice() {
		if spec != blackmagicImport && spec != dependsImport {
			extra.Add(spec)
		}
	}
	imports := append(
		[]string{blackmagicImport, dependsImport},
		set.Sorted(extra, func(a, b string) bool { return importPath(a) < importPath(b) })...,
	)

	var buf bytes.Buffer
	err := outputTemplate.Execute(&buf, outputData{
		Package: scan.Package,
		Imports: imports,
		Injects: scan.Injects,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render template:\n\t%w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generated code is invalid:\n\t%w\n%s", err, buf.String())
	}
	return formatted, nil
}

// importPath strips the alias of an import spec.
func importPath(spec string) string {
	if i := strings.LastIndexByte(spec, ' '); i >= 0 {
		return spec[i+1:]
	}
	return spec
}

func generateCode(outputPath string, scan fileScan) error {
	code, err := render(scan)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, code, 0o644); err != nil {
		return fmt.Errorf("unable to write %s:\n\t%w", outputPath, err)
	}
	return nil
}
