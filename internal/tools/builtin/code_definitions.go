package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"codeagent/internal/tools"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

type codeDefinitions struct{}

// NewCodeDefinitions returns the list_code_definition_names tool.
func NewCodeDefinitions() tools.Executor {
	return &codeDefinitions{}
}

type codeDefinitionsArgs struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}

func (t *codeDefinitions) Execute(ctx context.Context, call tools.Call) *tools.Result {
	args := codeDefinitionsArgs{Language: "python"}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}

	if strings.ToLower(strings.TrimSpace(args.Language)) != "python" {
		return tools.Fail(tools.FailureUnsupported, "Error: Only Python is supported currently.")
	}

	info, err := os.Stat(args.Path)
	if err != nil {
		return tools.Fail(tools.FailureNotFound, "Error: '%s' is not a valid file or directory.", args.Path)
	}

	var definitions []string
	collect := func(file string) {
		names, err := pythonDefinitions(ctx, file)
		if err != nil {
			definitions = append(definitions, fmt.Sprintf("%s: Error parsing file: %v", file, err))
			return
		}
		definitions = append(definitions, names...)
	}

	switch {
	case info.Mode().IsRegular():
		if !strings.HasSuffix(args.Path, ".py") {
			return tools.Fail(tools.FailureInvalidArgument, "Error: '%s' is not a Python (.py) file.", args.Path)
		}
		collect(args.Path)
	case info.IsDir():
		walkTree(args.Path, func(dir string, _, files []string) {
			for _, name := range files {
				if strings.HasSuffix(name, ".py") {
					collect(filepath.Join(dir, name))
				}
			}
		})
	default:
		return tools.Fail(tools.FailureNotFound, "Error: '%s' is not a valid file or directory.", args.Path)
	}

	if len(definitions) == 0 {
		return tools.Items([]string{"No code definitions found."})
	}
	return tools.Items(definitions)
}

// pythonDefinitions returns "function: <name>" and "class: <name>" entries
// for the module-level definitions of a Python file, in source order.
// Decorated definitions count; async functions do not.
func pythonDefinitions(ctx context.Context, path string) ([]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(src) {
		return nil, errInvalidUTF8
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root)
	}
	if legacy := firstLegacyStatement(root); legacy != nil {
		return nil, fmt.Errorf("Missing parentheses in call to '%s' (line %d)",
			legacy.Child(0).Type(), legacy.StartPoint().Row+1)
	}

	var out []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "decorated_definition" {
			node = node.ChildByFieldName("definition")
			if node == nil {
				continue
			}
		}
		switch node.Type() {
		case "function_definition":
			if isAsyncDefinition(node) {
				continue
			}
			if name := node.ChildByFieldName("name"); name != nil {
				out = append(out, "function: "+name.Content(src))
			}
		case "class_definition":
			if name := node.ChildByFieldName("name"); name != nil {
				out = append(out, "class: "+name.Content(src))
			}
		}
	}
	return out, nil
}

func isAsyncDefinition(node *sitter.Node) bool {
	return node.ChildCount() > 0 && node.Child(0).Type() == "async"
}

// syntaxError reports the first error or missing node in the tree.
func syntaxError(root *sitter.Node) error {
	if bad := firstErrorNode(root); bad != nil {
		return fmt.Errorf("invalid syntax (line %d)", bad.StartPoint().Row+1)
	}
	return fmt.Errorf("invalid syntax")
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// firstLegacyStatement finds Python 2 print or exec statements, which the
// grammar accepts but Python 3 rejects.
func firstLegacyStatement(node *sitter.Node) *sitter.Node {
	switch node.Type() {
	case "print_statement", "exec_statement":
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := firstLegacyStatement(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

func (t *codeDefinitions) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindListCodeDefinitions,
		Name:        string(tools.KindListCodeDefinitions),
		Description: "Lists the top-level function and class names defined in a Python file, or in every .py file under a directory.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"path":     {Type: "string", Description: "Python file or directory to scan."},
				"language": {Type: "string", Description: "Source language; only python is supported.", Default: "python", Nullable: true},
			},
			Required: []string{"path"},
		},
		Output: tools.OutputList,
	}
}
