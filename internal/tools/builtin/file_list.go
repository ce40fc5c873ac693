package builtin

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"codeagent/internal/tools"
)

type fileList struct{}

// NewFileList returns the list_files tool.
func NewFileList() tools.Executor {
	return &fileList{}
}

type fileListArgs struct {
	Directory   string `json:"directory"`
	Recursive   bool   `json:"recursive"`
	ExcludeDirs bool   `json:"exclude_dirs"`
}

func (t *fileList) Execute(_ context.Context, call tools.Call) *tools.Result {
	var args fileListArgs
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}

	info, err := os.Stat(args.Directory)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return tools.Fail(tools.FailureNotFound, "Error: '%s' does not exist.", args.Directory)
	case err != nil:
		return tools.Fail(tools.FailureInternal, "Error: Could not list '%s': %v", args.Directory, err)
	case !info.IsDir():
		return tools.Fail(tools.FailureInvalidArgument, "Error: '%s' is not a directory.", args.Directory)
	}

	if args.Recursive {
		entries := []string{}
		walkTree(args.Directory, func(dir string, dirs, files []string) {
			if !args.ExcludeDirs {
				for _, name := range dirs {
					entries = append(entries, filepath.Join(dir, name))
				}
			}
			for _, name := range files {
				entries = append(entries, filepath.Join(dir, name))
			}
		})
		return tools.Items(entries)
	}

	dirEntries, err := os.ReadDir(args.Directory)
	if err != nil {
		return tools.Fail(tools.FailurePermissionDenied, "Error: Could not list '%s': %v", args.Directory, err)
	}
	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if args.ExcludeDirs && !isRegularFile(filepath.Join(args.Directory, entry.Name())) {
			continue
		}
		names = append(names, entry.Name())
	}
	return tools.Items(names)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (t *fileList) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindListFiles,
		Name:        string(tools.KindListFiles),
		Description: "Lists the entries of a directory: bare names, or full paths of everything below it when recursive.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"directory":    {Type: "string", Description: "Directory to list."},
				"recursive":    {Type: "boolean", Description: "Walk subdirectories.", Default: false, Nullable: true},
				"exclude_dirs": {Type: "boolean", Description: "Only return files.", Default: false, Nullable: true},
			},
			Required: []string{"directory"},
		},
		Output: tools.OutputList,
	}
}
