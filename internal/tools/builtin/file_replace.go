package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"codeagent/internal/tools"
)

type fileReplace struct{}

// NewFileReplace returns the replace_in_file tool.
func NewFileReplace() tools.Executor {
	return &fileReplace{}
}

type fileReplaceArgs struct {
	FilePath string `json:"file_path"`
	Search   string `json:"search"`
	Replace  string `json:"replace"`
	Count    int    `json:"count"`
	UseRegex bool   `json:"use_regex"`
}

func (t *fileReplace) Execute(_ context.Context, call tools.Call) *tools.Result {
	args := fileReplaceArgs{Count: 1}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}

	info, err := os.Stat(args.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return tools.Fail(tools.FailureNotFound, "Error: File '%s' does not exist.", args.FilePath)
	}
	if err != nil {
		return editFailure(err)
	}
	if info.IsDir() {
		return tools.Fail(tools.FailureInvalidArgument, "Error editing file: '%s' is a directory", args.FilePath)
	}
	if args.Search == "" {
		return tools.Fail(tools.FailureInvalidArgument, "Error editing file: search text must not be empty")
	}
	if args.Count == 0 || args.Count < -1 {
		return tools.Fail(tools.FailureInvalidArgument, "Error editing file: count must be a positive number, or -1 to replace all occurrences")
	}

	data, err := os.ReadFile(args.FilePath)
	if err != nil {
		return editFailure(err)
	}
	if !utf8.Valid(data) {
		return tools.Fail(tools.FailureDecode, "Error editing file: '%s' is not valid UTF-8 text", args.FilePath)
	}
	content := string(data)

	var updated string
	var replaced int
	if args.UseRegex {
		re, err := regexp.Compile(args.Search)
		if err != nil {
			return tools.Fail(tools.FailureInvalidArgument, "Error editing file: invalid regular expression: %v", err)
		}
		updated, replaced = replaceRegex(content, re, args.Replace, args.Count)
	} else {
		updated, replaced = replaceLiteral(content, args.Search, args.Replace, args.Count)
	}

	if replaced == 0 {
		return tools.Success("No matches found to replace.")
	}

	if err := os.WriteFile(args.FilePath, []byte(updated), info.Mode().Perm()); err != nil {
		return editFailure(err)
	}

	res := tools.Success(fmt.Sprintf("Replaced %d occurrence(s) in '%s'.", replaced, args.FilePath))
	for key, value := range summarizeChange(content, updated).metadata() {
		res.WithMetadata(key, value)
	}
	return res.WithMetadata("replacements", replaced)
}

// replaceLiteral replaces the first count occurrences (all when count is -1).
func replaceLiteral(content, search, replace string, count int) (string, int) {
	n := strings.Count(content, search)
	if count > 0 && count < n {
		n = count
	}
	if n == 0 {
		return content, 0
	}
	return strings.Replace(content, search, replace, n), n
}

var pythonBackref = regexp.MustCompile(`\\(\d+)`)

// replaceRegex replaces the first count matches (all when count is -1).
// Templates use $1 / ${name} expansion; \1 style references are accepted too.
func replaceRegex(content string, re *regexp.Regexp, template string, count int) (string, int) {
	template = pythonBackref.ReplaceAllString(template, "$${$1}")
	matches := re.FindAllStringSubmatchIndex(content, count)
	if len(matches) == 0 {
		return content, 0
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(content[last:m[0]])
		b.Write(re.ExpandString(nil, template, content, m))
		last = m[1]
	}
	b.WriteString(content[last:])
	return b.String(), len(matches)
}

func editFailure(err error) *tools.Result {
	kind := tools.FailureInternal
	if errors.Is(err, fs.ErrPermission) {
		kind = tools.FailurePermissionDenied
	}
	return tools.Fail(kind, "Error editing file: %v", err)
}

func (t *fileReplace) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindReplaceInFile,
		Name:        string(tools.KindReplaceInFile),
		Description: "Replaces text in a file. Matches the search text literally, or as a regular expression (RE2 syntax, $1 for groups) when use_regex is true.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"file_path": {Type: "string", Description: "Path of the file to edit."},
				"search":    {Type: "string", Description: "Text or pattern to find."},
				"replace":   {Type: "string", Description: "Replacement text."},
				"count":     {Type: "integer", Description: "Number of occurrences to replace; -1 replaces all.", Default: 1, Nullable: true},
				"use_regex": {Type: "boolean", Description: "Treat search as a regular expression.", Default: false, Nullable: true},
			},
			Required: []string{"file_path", "search", "replace"},
		},
		Output: tools.OutputString,
	}
}
