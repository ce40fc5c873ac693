package builtin

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"codeagent/internal/tools"
)

type fileRead struct{}

// NewFileRead returns the read_file tool.
func NewFileRead() tools.Executor {
	return &fileRead{}
}

type fileReadArgs struct {
	FilePath string `json:"file_path"`
	Encoding string `json:"encoding"`
}

func (t *fileRead) Execute(_ context.Context, call tools.Call) *tools.Result {
	args := fileReadArgs{Encoding: "utf-8"}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}

	data, err := os.ReadFile(args.FilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return tools.Fail(tools.FailureNotFound, "Error: File '%s' does not exist.", args.FilePath)
	case errors.Is(err, fs.ErrPermission):
		return tools.Fail(tools.FailurePermissionDenied, "Error: Permission denied for '%s'.", args.FilePath)
	case err != nil:
		return tools.Fail(tools.FailureInternal, "Unexpected error: %v", err)
	}

	text, err := decodeText(data, args.Encoding)
	if errors.Is(err, errUnknownEncoding) {
		return tools.Fail(tools.FailureInvalidArgument, "Error: Unknown encoding '%s'.", args.Encoding)
	}
	if err != nil {
		return tools.Fail(tools.FailureDecode, "Error: Could not decode '%s' with encoding '%s'.", args.FilePath, args.Encoding)
	}
	return tools.Success(text)
}

func (t *fileRead) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindReadFile,
		Name:        string(tools.KindReadFile),
		Description: "Reads the full contents of a file and returns them as text.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"file_path": {Type: "string", Description: "Path of the file to read."},
				"encoding":  {Type: "string", Description: "Text encoding of the file.", Default: "utf-8", Nullable: true},
			},
			Required: []string{"file_path"},
		},
		Output: tools.OutputString,
	}
}
