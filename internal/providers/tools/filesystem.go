package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	ReadFileToolName  = "read_file"
	WriteFileToolName = "write_file"
	ListDirToolName   = "list_directory"

	maxReadSize = 256 << 10
)

const pathSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Path relative to the workspace" }
  },
  "required": ["path"]
}
`

const writeFileSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Path relative to the workspace" },
    "content": { "type": "string", "description": "The content to write to the file" }
  },
  "required": ["path", "content"]
}
`

var ErrOutsideWorkspace = errors.New("path escapes the workspace")

// Workspace exposes file tools confined to a single directory.
type Workspace struct {
	root string
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{root: filepath.Clean(root)}
}

// resolve maps p into the workspace. Symlinks on the existing part of the
// path are followed before the containment check.
func (w *Workspace) resolve(p string) (string, error) {
	if filepath.IsAbs(p) {
		return "", ErrOutsideWorkspace
	}
	full := filepath.Join(w.root, p)
	if !within(w.root, full) {
		return "", ErrOutsideWorkspace
	}

	root, err := filepath.EvalSymlinks(w.root)
	if errors.Is(err, fs.ErrNotExist) {
		return full, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}

	existing := full
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !within(root, resolved) {
		return "", ErrOutsideWorkspace
	}
	return full, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Workspace) ReadFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if info.Size() > maxReadSize {
		return "", fmt.Errorf("file is too large: %d bytes", info.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

func (w *Workspace) WriteFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(input.Content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully wrote to %s", input.Path), nil
}

func (w *Workspace) ListDir(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	if len(entries) == 0 {
		return "(empty)", nil
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&b, "[DIR]  %s\n", entry.Name())
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&b, "[FILE] %s (%d bytes)\n", entry.Name(), size)
	}
	return b.String(), nil
}

func (w *Workspace) Definitions() []Definition {
	return []Definition{
		{Name: ReadFileToolName, Description: "Read a file from the workspace", Schema: pathSchema, Handler: w.ReadFile},
		{Name: WriteFileToolName, Description: "Write content to a file in the workspace", Schema: writeFileSchema, Handler: w.WriteFile},
		{Name: ListDirToolName, Description: "List contents of a workspace directory", Schema: pathSchema, Handler: w.ListDir},
	}
}
