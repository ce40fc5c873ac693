package builtin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// walkTree visits root and every directory below it top-down, calling visit
// with the directory path and the sorted names of its subdirectories and
// other entries. Symlinked directories are reported as directories but not
// descended into. Unreadable directories are skipped.
func walkTree(root string, visit func(dir string, dirs, files []string)) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	var dirs, files []string
	for _, entry := range entries {
		if isDirEntry(root, entry) {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	visit(root, dirs, files)

	for _, name := range dirs {
		child := filepath.Join(root, name)
		if info, err := os.Lstat(child); err == nil && info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		walkTree(child, visit)
	}
}

func isDirEntry(parent string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}

var (
	errInvalidUTF8     = errors.New("invalid utf-8 sequence")
	errUnknownEncoding = errors.New("unknown encoding")
)

func isUTF8Name(name string) bool {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", errUnknownEncoding, name)
	}
	return enc, nil
}

// decodeText converts raw bytes in the named encoding to a Go string.
func decodeText(data []byte, name string) (string, error) {
	if isUTF8Name(name) {
		if !utf8.Valid(data) {
			return "", errInvalidUTF8
		}
		return string(data), nil
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encodeText converts text to the named encoding.
func encodeText(text, name string) ([]byte, error) {
	if isUTF8Name(name) {
		return []byte(text), nil
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return enc.NewEncoder().Bytes([]byte(text))
}
