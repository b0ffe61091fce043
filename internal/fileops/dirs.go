package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencode-ai/agentcmd/internal/command"
)

type movePaths struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func (o *ops) createDirectory() command.Command {
	return command.New("create_directory", "Creates a new File System Directory", command.CategoryFile,
		[]command.Arg{{Name: "directory_path_name", Description: "Directory to create", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				Path string `json:"directory_path_name"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.Path)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(path); err == nil {
				return &command.Result{Output: fmt.Sprintf("Directory '%s' already exists.", in.Path)}, nil
			}
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, fmt.Errorf("creating directory '%s': %w", in.Path, err)
			}
			return &command.Result{Output: fmt.Sprintf("Directory '%s' created.", in.Path)}, nil
		})
}

func (o *ops) renameDirectory() command.Command {
	return command.New("rename_directory", "Rename a Directory", command.CategoryFile,
		[]command.Arg{
			{Name: "old_path", Required: true},
			{Name: "new_path", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			from, to, in, err := resolvePair(input, cctx)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(from)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("Directory '%s' not found.", in.OldPath)
			}
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				return nil, fmt.Errorf("'%s' is not a directory", in.OldPath)
			}
			if err := os.Rename(from, to); err != nil {
				return nil, fmt.Errorf("renaming directory '%s' to '%s': %w", in.OldPath, in.NewPath, err)
			}
			return &command.Result{
				Output: fmt.Sprintf("Directory renamed from '%s' to '%s'.", in.OldPath, in.NewPath),
			}, nil
		})
}

func (o *ops) deleteDirectory() command.Command {
	return command.New("delete_directory", "Delete a Directory and its contents", command.CategoryFile,
		[]command.Arg{{Name: "directory_path", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				Path string `json:"directory_path"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.Path)
			if err != nil {
				return nil, err
			}
			if path == cctx.Workspace.Root() {
				return nil, errors.New("refusing to delete the workspace root")
			}
			info, err := os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("Directory '%s' not found.", in.Path)
			}
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				return nil, fmt.Errorf("'%s' is not a directory", in.Path)
			}
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("deleting directory '%s': %w", in.Path, err)
			}
			return &command.Result{Output: fmt.Sprintf("Directory '%s' deleted.", in.Path)}, nil
		})
}

func (o *ops) copyFile() command.Command {
	return command.New("copy_file", "Make a duplicate copy of a file", command.CategoryFile,
		[]command.Arg{
			{Name: "source", Required: true},
			{Name: "destination", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				Source      string `json:"source"`
				Destination string `json:"destination"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			src, err := cctx.Resolve(in.Source)
			if err != nil {
				return nil, err
			}
			dst, err := cctx.Resolve(in.Destination)
			if err != nil {
				return nil, err
			}
			if err := copyPreserving(src, dst); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("File '%s' not found.", in.Source)
				}
				return nil, fmt.Errorf("copying file '%s' to '%s': %w", in.Source, in.Destination, err)
			}
			o.edited(dst, OpWrite)
			return &command.Result{Output: fmt.Sprintf("File '%s' copied to '%s'.", in.Source, in.Destination)}, nil
		})
}

// ErrSameFile is returned when a copy would overwrite its own source.
var ErrSameFile = errors.New("source and destination are the same file")

// copyPreserving copies a regular file, keeping its mode and modification
// time. A directory destination receives a file of the same base name.
func copyPreserving(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("'%s' is a directory", src)
	}
	if st, err := os.Stat(dst); err == nil && st.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if st, err := os.Stat(dst); err == nil && os.SameFile(info, st) {
		return ErrSameFile
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (o *ops) renameFile() command.Command {
	return command.New("rename_file", "Rename a file", command.CategoryFile,
		[]command.Arg{
			{Name: "old_path", Required: true},
			{Name: "new_path", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			from, to, in, err := resolvePair(input, cctx)
			if err != nil {
				return nil, err
			}
			if err := os.Rename(from, to); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("File '%s' not found.", in.OldPath)
				}
				return nil, fmt.Errorf("renaming file '%s' to '%s': %w", in.OldPath, in.NewPath, err)
			}
			o.edited(to, OpWrite)
			return &command.Result{
				Output: fmt.Sprintf("File renamed from '%s' to '%s'.", in.OldPath, in.NewPath),
			}, nil
		})
}

func resolvePair(input json.RawMessage, cctx *command.Context) (string, string, movePaths, error) {
	var in movePaths
	if err := command.Decode(input, &in); err != nil {
		return "", "", in, err
	}
	from, err := cctx.Resolve(in.OldPath)
	if err != nil {
		return "", "", in, err
	}
	to, err := cctx.Resolve(in.NewPath)
	if err != nil {
		return "", "", in, err
	}
	return from, to, in, nil
}
