package widget

import (
	"embed"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/stoewer/go-strcase"
)

//go:embed types.go
var typesGoFile embed.FS

// CustomReflector extends the default reflector with the doc comments of
// the widget types.
type CustomReflector struct {
	*jsonschema.Reflector
}

// NewCustomReflector creates a reflector that keeps the camelCase keys of
// the dashboard format.
func NewCustomReflector() *CustomReflector {
	r := &jsonschema.Reflector{
		KeyNamer: strcase.LowerCamelCase,
		Namer: func(t reflect.Type) string {
			return strcase.SnakeCase(t.Name())
		},
		ExpandedStruct: true,
	}
	return &CustomReflector{Reflector: r}
}

// NewSchema returns the JSON schema of an exported dashboard config.
func NewSchema() ([]byte, error) {
	reflector := NewCustomReflector()
	if err := reflector.extractGoComments(reflect.TypeOf(Config{}).PkgPath()); err != nil {
		return nil, err
	}

	schema := reflector.Reflect(&Config{})
	return json.MarshalIndent(schema, "", "  ")
}

// JSONSchema describes the field mapping union: a field list for cards, a
// table mapping or a chart mapping.
func (Mapping) JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		KeyNamer:       strcase.LowerCamelCase,
		ExpandedStruct: true,
		DoNotReference: true,
	}
	inline := func(v any) *jsonschema.Schema {
		s := r.Reflect(v)
		s.Version = ""
		return s
	}

	card := &jsonschema.Schema{
		Type:  "array",
		Title: "card",
		Items: inline(&FieldMapping{}),
	}
	table := inline(&TableFieldMapping{})
	table.Title = "table"
	chart := inline(&ChartFieldMapping{})
	chart.Title = "chart"

	return &jsonschema.Schema{
		Description: "Field mapping; its shape is selected by the widget type.",
		OneOf:       []*jsonschema.Schema{card, table, chart},
	}
}

func (r *CustomReflector) extractGoComments(pkg string) error {
	commentMap := make(map[string]string)
	fset := token.NewFileSet()
	typesFile, err := typesGoFile.ReadFile("types.go")
	if err != nil {
		return err
	}

	f, err := parser.ParseFile(fset, "types.go", typesFile, parser.ParseComments)
	if err != nil {
		return err
	}

	typ := ""
	ast.Inspect(f, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.TypeSpec:
			typ = x.Name.String()
			if !ast.IsExported(typ) {
				typ = ""
				return true
			}
			if txt := strings.TrimSpace(x.Doc.Text()); txt != "" {
				commentMap[fmt.Sprintf("%s.%s", pkg, typ)] = txt
			}
		case *ast.GenDecl:
			// single-type declarations carry the doc on the GenDecl
			if len(x.Specs) == 1 {
				if ts, ok := x.Specs[0].(*ast.TypeSpec); ok && ast.IsExported(ts.Name.String()) {
					if txt := strings.TrimSpace(x.Doc.Text()); txt != "" {
						commentMap[fmt.Sprintf("%s.%s", pkg, ts.Name)] = txt
					}
				}
			}
		case *ast.Field:
			txt := x.Doc.Text()
			if txt == "" {
				txt = x.Comment.Text()
			}
			if typ != "" && txt != "" {
				for _, n := range x.Names {
					if ast.IsExported(n.String()) {
						commentMap[fmt.Sprintf("%s.%s.%s", pkg, typ, n)] = strings.TrimSpace(txt)
					}
				}
			}
		}
		return true
	})

	r.CommentMap = commentMap
	return nil
}
