package builtin

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"codeagent/internal/tools"
)

type fileSearch struct{}

// NewFileSearch returns the search_files tool.
func NewFileSearch() tools.Executor {
	return &fileSearch{}
}

type fileSearchArgs struct {
	Directory     string `json:"directory"`
	RegexPattern  string `json:"regex_pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
	AbsolutePath  bool   `json:"absolute_path"`
}

func (t *fileSearch) Execute(_ context.Context, call tools.Call) *tools.Result {
	args := fileSearchArgs{AbsolutePath: true}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}

	info, err := os.Stat(args.Directory)
	if err != nil || !info.IsDir() {
		return tools.Fail(tools.FailureNotFound, "Error: '%s' is not a valid directory.", args.Directory)
	}

	pattern := "^(?:" + args.RegexPattern + ")"
	if !args.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return tools.Fail(tools.FailureInvalidArgument, "Error: Invalid regex pattern '%s': %v", args.RegexPattern, err)
	}

	var matches []string
	walkTree(args.Directory, func(dir string, _, files []string) {
		for _, name := range files {
			if !re.MatchString(name) {
				continue
			}
			path := filepath.Join(dir, name)
			if args.AbsolutePath {
				if abs, err := filepath.Abs(path); err == nil {
					path = abs
				}
			}
			matches = append(matches, path)
		}
	})

	if len(matches) == 0 {
		return tools.Items([]string{"No files matched the pattern."})
	}
	return tools.Items(matches)
}

func (t *fileSearch) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindSearchFiles,
		Name:        string(tools.KindSearchFiles),
		Description: "Recursively finds files under a directory whose names match a regular expression (matched from the start of the name).",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"directory":      {Type: "string", Description: "Directory to search."},
				"regex_pattern":  {Type: "string", Description: "Pattern matched against file names."},
				"case_sensitive": {Type: "boolean", Description: "Match case-sensitively.", Default: false, Nullable: true},
				"absolute_path":  {Type: "boolean", Description: "Return absolute paths.", Default: true, Nullable: true},
			},
			Required: []string{"directory", "regex_pattern"},
		},
		Output: tools.OutputList,
	}
}
