package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/a-peyrard/blackmagic/set"
	"github.com/a-peyrard/blackmagic/slices"
	"github.com/rs/zerolog"
)

type (
	InjectDefinition struct {
		FnName      string
		VarName     string
		Named       string
		Description string
		Params      []ParamDefinition
	}

	ParamDefinition struct {
		Index      int
		Name       string
		Elem       string
		Annotation DependsAnnotation
	}

	// fileScan is what one source file contributes to the generated file.
	fileScan struct {
		Package string
		Injects []InjectDefinition
		Imports set.Set[string]
	}
)

func (d InjectDefinition) String() string {
	return fmt.Sprintf(
		`💉 Inject: %s
Description: %s
Variable: %s
Parameters: [%s]`,
		d.FnName,
		d.Description,
		d.VarName,
		strings.Join(slices.Map(d.Params, ParamDefinition.String), ", "),
	)
}

func (p ParamDefinition) String() string {
	return fmt.Sprintf("%d:%s *%s %s", p.Index, p.Name, p.Elem, p.Annotation)
}

// Option renders the blackmagic option binding this parameter.
func (p ParamDefinition) Option() string {
	var opts []string
	if !p.Annotation.Cached() {
		opts = append(opts, "depends.Cached(false)")
	}
	if !p.Annotation.AllowDefault() {
		opts = append(opts, "depends.AllowDefault(false)")
	}

	factory, hasFactory := p.Annotation.Factory()
	var maker string
	switch {
	case !hasFactory && p.Annotation.Async():
		maker = fmt.Sprintf("depends.DependsAsync[%s](%s)", p.Elem, strings.Join(opts, ", "))
	case !hasFactory:
		maker = fmt.Sprintf("depends.Depends[%s](%s)", p.Elem, strings.Join(opts, ", "))
	default:
		name := "DependsOn"
		if p.Annotation.Ref() {
			name += "Ref"
		}
		if p.Annotation.Async() {
			name += "Async"
		}
		maker = fmt.Sprintf("depends.%s(%s)", name, strings.Join(append([]string{factory}, opts...), ", "))
	}

	if p.Annotation.Async() {
		return fmt.Sprintf(
			"blackmagic.AsyncParam(%d, func() *depends.Task[depends.DependsPtrValue[%s]] { return %s })",
			p.Index, p.Elem, maker,
		)
	}
	return fmt.Sprintf(
		"blackmagic.Param(%d, func() depends.DependsPtrValue[%s] { return %s })",
		p.Index, p.Elem, maker,
	)
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

// paramElem returns T for a *T or Ref[T] parameter.
func paramElem(expr ast.Expr) (ast.Expr, bool) {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return e.X, true
	case *ast.IndexExpr:
		switch x := e.X.(type) {
		case *ast.SelectorExpr:
			if x.Sel.Name == "Ref" {
				return e.Index, true
			}
		case *ast.Ident:
			if x.Name == "Ref" {
				return e.Index, true
			}
		}
	}
	return nil, false
}

// qualifiers collects the package names an expression refers to.
func qualifiers(expr ast.Expr) []string {
	var names []string
	ast.Inspect(expr, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if ident, ok := sel.X.(*ast.Ident); ok {
				names = append(names, ident.Name)
			}
		}
		return true
	})
	return names
}

// importsByName maps the name a file uses for each import to its import spec.
func importsByName(file *ast.File) map[string]string {
	imports := make(map[string]string)
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		quoted := strconv.Quote(path)
		if spec.Name != nil {
			name = spec.Name.Name
			quoted = spec.Name.Name + " " + quoted
		}
		imports[name] = quoted
	}
	return imports
}

func injectedName(fnName string) string {
	return fnName + "Injected"
}

// scanFile collects the @inject functions of file and the imports their bindings need.
func scanFile(logger *zerolog.Logger, fset *token.FileSet, file *ast.File) fileScan {
	result := fileScan{Package: file.Name.Name, Imports: set.New[string]()}
	imports := importsByName(file)
	require := func(expr ast.Expr) {
		for _, name := range qualifiers(expr) {
			if spec, ok := imports[name]; ok {
				result.Imports.Add(spec)
			}
		}
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil || !strings.Contains(fn.Doc.Text(), injectAnnotationTag) {
			continue
		}
		logger := logger.With().Str("function", fn.Name.Name).Logger()
		if fn.Recv != nil {
			logger.Warn().Msg("@inject on methods is not supported, skipping it")
			continue
		}
		if fn.Type.TypeParams != nil {
			logger.Warn().Msg("@inject on generic functions is not supported, skipping it")
			continue
		}

		logger.Debug().Msg("=> Found injected function")
		annotation := parseInjectAnnotation(&logger, fn.Doc.Text())
		if unknown := annotation.UnknownProperties(); len(unknown) > 0 {
			logger.Warn().Strs("properties", unknown).Msg("Unknown @inject properties, ignoring them")
		}

		definition := InjectDefinition{
			FnName:      fn.Name.Name,
			VarName:     injectedName(fn.Name.Name),
			Description: annotation.description,
		}
		if as, found := annotation.As(); found {
			definition.VarName = as
		}
		if named, found := annotation.Named(); found {
			definition.Named = named
		}

		index := 0
		for _, param := range fn.Type.Params.List {
			names := param.Names
			if len(names) == 0 {
				names = []*ast.Ident{{Name: "_"}}
			}
			depends, tagged := parseDependsAnnotation(&logger, findCommentForParam(fset, file, param))
			for _, name := range names {
				current := index
				index++
				if !tagged {
					continue
				}
				loggerParam := logger.With().Str("param", name.Name).Logger()
				elem, ok := paramElem(param.Type)
				if !ok {
					loggerParam.Warn().Str("type", types.ExprString(param.Type)).
						Msg("@depends needs a pointer or depends.Ref parameter, skipping it")
					continue
				}
				if unknown := depends.UnknownProperties(); len(unknown) > 0 {
					loggerParam.Warn().Strs("properties", unknown).Msg("Unknown @depends properties, ignoring them")
				}
				require(elem)
				if factory, found := depends.Factory(); found {
					if dot := strings.IndexByte(factory, '.'); dot > 0 {
						if spec, ok := imports[factory[:dot]]; ok {
							result.Imports.Add(spec)
						}
					}
				}
				definition.Params = append(definition.Params, ParamDefinition{
					Index:      current,
					Name:       name.Name,
					Elem:       types.ExprString(elem),
					Annotation: depends,
				})
			}
		}
		result.Injects = append(result.Injects, definition)
	}
	return result
}
