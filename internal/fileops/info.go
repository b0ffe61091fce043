package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/opencode-ai/agentcmd/internal/command"
)

const timeLayout = "2006-01-02 15:04:05"

type targetInput struct {
	TargetPath  string `json:"target_path"`
	Permissions string `json:"permissions"`
	Owner       string `json:"owner"`
	Group       string `json:"group"`
}

func (o *ops) getFileInfo() command.Command {
	return command.New("get_file_info", "Get info for a file including mime type, permissions and more", command.CategoryFile,
		[]command.Arg{{Name: "file_path", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				FilePath string `json:"file_path"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.FilePath)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("File '%s' not found.", in.FilePath)
			}
			if err != nil {
				return nil, fmt.Errorf("getting file info for '%s': %w", in.FilePath, err)
			}

			uid, gid := ownerIDs(info)
			owner, group := strconv.Itoa(uid), strconv.Itoa(gid)
			if u, err := user.LookupId(owner); err == nil {
				owner = u.Username
			}
			if g, err := user.LookupGroupId(group); err == nil {
				group = g.Name
			}

			var b strings.Builder
			fmt.Fprintf(&b, "File info for '%s':\n", in.FilePath)
			fmt.Fprintf(&b, "- Size: %d bytes (%s)\n", info.Size(), humanize.Bytes(uint64(info.Size())))
			fmt.Fprintf(&b, "- Last modified time: %s\n", info.ModTime().Format(timeLayout))
			fmt.Fprintf(&b, "- Mode: %s\n", info.Mode())
			fmt.Fprintf(&b, "- UID: %d\n", uid)
			fmt.Fprintf(&b, "- GID: %d\n", gid)
			fmt.Fprintf(&b, "- Mime type: %s\n", mimeType(path, info))
			fmt.Fprintf(&b, "- Permissions: %03o\n", info.Mode().Perm())
			fmt.Fprintf(&b, "- Owner: %s\n", owner)
			fmt.Fprintf(&b, "- Group: %s\n", group)

			return &command.Result{
				Title:  filepath.Base(path),
				Output: b.String(),
				Metadata: map[string]any{
					"size":        info.Size(),
					"permissions": fmt.Sprintf("%03o", info.Mode().Perm()),
				},
			}, nil
		})
}

func ownerIDs(info fs.FileInfo) (int, int) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(st.Uid), int(st.Gid)
	}
	return -1, -1
}

// mimeType guesses from the extension, then sniffs the content of files.
func mimeType(path string, info fs.FileInfo) string {
	if info.IsDir() {
		return "inode/directory"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n])
}

func (o *ops) changePermissions() command.Command {
	return command.New("change_permissions", "Change permissions of a target file or directory", command.CategoryFile,
		[]command.Arg{
			{Name: "target_path", Required: true},
			{Name: "permissions", Description: "Octal mode such as 755", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in targetInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.TargetPath)
			if err != nil {
				return nil, err
			}
			mode, err := strconv.ParseUint(in.Permissions, 8, 32)
			if err != nil || mode > 0o7777 {
				return nil, fmt.Errorf("invalid permissions %q: expected octal such as 755", in.Permissions)
			}

			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("'%s' is not a file or directory", in.TargetPath)
			}
			if info.IsDir() {
				err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
					if err != nil {
						return err
					}
					return os.Chmod(p, fs.FileMode(mode))
				})
			} else {
				err = os.Chmod(path, fs.FileMode(mode))
			}
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Output: fmt.Sprintf("Changed permissions of '%s' to %s recursively.", in.TargetPath, in.Permissions),
			}, nil
		})
}

func (o *ops) changeOwnerGroup() command.Command {
	return command.New("change_owner_group", "Change owner and group (chown) of a target file or directory", command.CategoryFile,
		[]command.Arg{
			{Name: "target_path", Required: true},
			{Name: "owner", Description: "User name or numeric id", Required: true},
			{Name: "group", Description: "Group name or numeric id", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in targetInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.TargetPath)
			if err != nil {
				return nil, err
			}
			uid, err := lookupUID(in.Owner)
			if err != nil {
				return nil, err
			}
			gid, err := lookupGID(in.Group)
			if err != nil {
				return nil, err
			}
			if err := os.Chown(path, uid, gid); err != nil {
				return nil, err
			}
			return &command.Result{
				Output: fmt.Sprintf("Changed owner and group of '%s' to %s:%s.", in.TargetPath, in.Owner, in.Group),
			}, nil
		})
}

func lookupUID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}

func lookupGID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(g.Gid)
}

func (o *ops) getFileSize() command.Command {
	return command.New("get_file_size", "Get the file size in bytes for a chosen file path or directory", command.CategoryFile,
		[]command.Arg{{Name: "target_path", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in targetInput
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.TargetPath)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("'%s' is not a file or directory", in.TargetPath)
			}
			if !info.IsDir() {
				return &command.Result{
					Output:   fmt.Sprintf("File size of '%s' is %d bytes.", in.TargetPath, info.Size()),
					Metadata: map[string]any{"bytes": info.Size(), "human": humanize.Bytes(uint64(info.Size()))},
				}, nil
			}

			var total, files int64
			err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.Type().IsRegular() {
					fi, err := d.Info()
					if err != nil {
						return err
					}
					total += fi.Size()
					files++
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Output:   fmt.Sprintf("Total size of '%s' is %d bytes with %d files.", in.TargetPath, total, files),
				Metadata: map[string]any{"bytes": total, "files": files, "human": humanize.Bytes(uint64(total))},
			}, nil
		})
}
