package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"codeagent/internal/tools"
)

type fileWrite struct{}

// NewFileWrite returns the write_to_file tool.
func NewFileWrite() tools.Executor {
	return &fileWrite{}
}

type fileWriteArgs struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (t *fileWrite) Execute(_ context.Context, call tools.Call) *tools.Result {
	args := fileWriteArgs{Encoding: "utf-8"}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}

	data, err := encodeText(args.Content, args.Encoding)
	if err != nil {
		if errors.Is(err, errUnknownEncoding) {
			return tools.Fail(tools.FailureInvalidArgument, "Error writing file: unknown encoding '%s'", args.Encoding)
		}
		return tools.Fail(tools.FailureDecode, "Error writing file: %v", err)
	}

	var previous string
	if old, err := os.ReadFile(args.FilePath); err == nil {
		previous = string(old)
	}

	if dir := filepath.Dir(args.FilePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return writeFailure(err)
		}
	}
	if err := os.WriteFile(args.FilePath, data, 0o644); err != nil {
		return writeFailure(err)
	}

	res := tools.Success(fmt.Sprintf("File '%s' written successfully.", args.FilePath))
	for key, value := range summarizeChange(previous, args.Content).metadata() {
		res.WithMetadata(key, value)
	}
	return res
}

func writeFailure(err error) *tools.Result {
	kind := tools.FailureInternal
	if errors.Is(err, os.ErrPermission) {
		kind = tools.FailurePermissionDenied
	}
	return tools.Fail(kind, "Error writing file: %v", err)
}

func (t *fileWrite) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindWriteFile,
		Name:        string(tools.KindWriteFile),
		Description: "Writes content to a file, creating parent directories and overwriting any existing file.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"file_path": {Type: "string", Description: "Path of the file to write."},
				"content":   {Type: "string", Description: "Full text to write."},
				"encoding":  {Type: "string", Description: "Text encoding to write with.", Default: "utf-8", Nullable: true},
			},
			Required: []string{"file_path", "content"},
		},
		Output: tools.OutputString,
	}
}
