package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/opencode-ai/agentcmd/internal/command"
)

var (
	// ErrAlreadyUpdated is returned for a write whose content is already on disk.
	ErrAlreadyUpdated = errors.New("File has already been updated.")
	// ErrAlreadyDeleted is returned for a repeated delete.
	ErrAlreadyDeleted = errors.New("File has already been deleted.")
)

var filenameArg = command.Arg{Name: "filename", Description: "Path of the file, relative to the workspace", Required: true}

type textInput struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (o *ops) readFile() command.Command {
	return command.New("read_file", "Read file", command.CategoryFile,
		[]command.Arg{filenameArg},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in textInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.Filename)
			if err != nil {
				return nil, err
			}
			content, err := ReadText(path)
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Title:    filepath.Base(path),
				Output:   content,
				Metadata: map[string]any{"file": path, "bytes": len(content)},
			}, nil
		})
}

func (o *ops) writeToFile() command.Command {
	return command.New("write_to_file", "Write to file", command.CategoryFile,
		[]command.Arg{filenameArg, {Name: "text", Description: "Content to write", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in textInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.Filename)
			if err != nil {
				return nil, err
			}

			checksum := Checksum(in.Text)
			dup, err := o.log.IsDuplicate(OpWrite, path, checksum)
			if err != nil {
				return nil, err
			}
			if dup {
				return nil, ErrAlreadyUpdated
			}

			var before string
			if data, err := os.ReadFile(path); err == nil {
				before = string(data)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(in.Text), 0644); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}
			if err := o.log.Record(OpWrite, path, checksum); err != nil {
				return nil, err
			}
			o.edited(path, OpWrite)

			diff, additions, deletions := buildDiff(path, before, in.Text, cctx.WorkDir)
			return &command.Result{
				Title:  fmt.Sprintf("Wrote %s", filepath.Base(path)),
				Output: "File written to successfully.",
				Metadata: map[string]any{
					"file":      path,
					"bytes":     len(in.Text),
					"diff":      diff,
					"additions": additions,
					"deletions": deletions,
				},
			}, nil
		})
}

func (o *ops) appendToFile() command.Command {
	return command.New("append_to_file", "Append to file", command.CategoryFile,
		[]command.Arg{filenameArg, {Name: "text", Description: "Content to append", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in textInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.Filename)
			if err != nil {
				return nil, err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return nil, err
			}
			if _, err := f.WriteString(in.Text); err != nil {
				f.Close()
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}

			full, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if err := o.log.Record(OpAppend, path, Checksum(string(full))); err != nil {
				return nil, err
			}
			o.edited(path, OpAppend)

			return &command.Result{
				Title:    fmt.Sprintf("Appended to %s", filepath.Base(path)),
				Output:   "Text appended successfully.",
				Metadata: map[string]any{"file": path, "bytes": len(in.Text)},
			}, nil
		})
}

func (o *ops) deleteFile() command.Command {
	return command.New("delete_file", "Delete file", command.CategoryFile,
		[]command.Arg{filenameArg},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in textInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.Filename)
			if err != nil {
				return nil, err
			}

			dup, err := o.log.IsDuplicate(OpDelete, path, "")
			if err != nil {
				return nil, err
			}
			if dup {
				return nil, ErrAlreadyDeleted
			}
			if err := os.Remove(path); err != nil {
				return nil, err
			}
			if err := o.log.Record(OpDelete, path, ""); err != nil {
				return nil, err
			}
			o.edited(path, OpDelete)

			return &command.Result{
				Title:  fmt.Sprintf("Deleted %s", filepath.Base(path)),
				Output: "File deleted successfully.",
			}, nil
		})
}

func (o *ops) listFiles() command.Command {
	return command.New("list_files", "List Files in Directory", command.CategoryFile,
		[]command.Arg{
			{Name: "directory", Description: "Directory to walk", Required: true},
			{Name: "ignore", Type: "array", Description: "Glob patterns to skip"},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				Directory string   `json:"directory"`
				Ignore    []string `json:"ignore"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			dir, err := cctx.Resolve(in.Directory)
			if err != nil {
				return nil, err
			}
			for _, pattern := range in.Ignore {
				if !doublestar.ValidatePattern(pattern) {
					return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
				}
			}

			files, err := walkFiles(ctx, dir, cctx.Workspace.Root(), in.Ignore)
			if err != nil {
				return nil, err
			}
			out, _ := json.Marshal(files)
			return &command.Result{
				Title:    fmt.Sprintf("%d files", len(files)),
				Output:   string(out),
				Metadata: map[string]any{"count": len(files)},
			}, nil
		})
}

// walkFiles lists files under dir, skipping dot files and directories, with paths
// relative to root.
func walkFiles(ctx context.Context, dir, root string, ignore []string) ([]string, error) {
	found := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		for _, pattern := range ignore {
			if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
				return nil
			}
		}
		found = append(found, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

func (o *ops) ingestFile() command.Command {
	return command.New("ingest_file", "Ingest file into memory", command.CategoryFile,
		[]command.Arg{
			filenameArg,
			{Name: "max_length", Type: "integer", Description: "Maximum chunk length in characters"},
			{Name: "overlap", Type: "integer", Description: "Characters shared by consecutive chunks"},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in := struct {
				Filename  string `json:"filename"`
				MaxLength int    `json:"max_length"`
				Overlap   *int   `json:"overlap"`
			}{MaxLength: DefaultMaxLength}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			overlap := DefaultOverlap
			if in.Overlap != nil {
				overlap = *in.Overlap
			}
			path, err := cctx.Resolve(in.Filename)
			if err != nil {
				return nil, err
			}

			n, err := Ingest(ctx, path, in.Filename, o.memory, in.MaxLength, overlap)
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Title:    fmt.Sprintf("Ingested %s", filepath.Base(path)),
				Output:   fmt.Sprintf("Ingested %d chunks from %s into memory.", n, in.Filename),
				Metadata: map[string]any{"chunks": n},
			}, nil
		})
}
