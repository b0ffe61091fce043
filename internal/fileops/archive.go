package fileops

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/permission"
)

// ErrUnsafeEntry is returned for archive members that would land outside
// the extraction directory.
var ErrUnsafeEntry = errors.New("archive entry escapes target directory")

func (o *ops) compressFiles() command.Command {
	return command.New("compress_files", "Compress files at target paths into an archive with a chosen format", command.CategoryFile,
		[]command.Arg{
			{Name: "target_paths", Description: "Comma separated files or directories", Required: true},
			{Name: "compression_format", Description: "zip, tar, gz or bz2 (default zip)"},
			{Name: "output_file", Description: "Archive name without extension (default output)"},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			in := struct {
				TargetPaths string `json:"target_paths"`
				Format      string `json:"compression_format"`
				OutputFile  string `json:"output_file"`
			}{}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			if in.Format == "" {
				in.Format = "zip"
			}
			if in.OutputFile == "" {
				in.OutputFile = "output"
			}

			var sources []string
			for _, p := range strings.Split(in.TargetPaths, ",") {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				resolved, err := cctx.Resolve(p)
				if err != nil {
					return nil, err
				}
				if _, err := os.Stat(resolved); err != nil {
					continue
				}
				sources = append(sources, resolved)
			}

			name := in.OutputFile + "." + in.Format
			archive, err := cctx.Resolve(name)
			if err != nil {
				return nil, err
			}
			if err := Compress(ctx, archive, in.Format, sources); err != nil {
				return nil, err
			}
			return &command.Result{
				Title:    filepath.Base(archive),
				Output:   fmt.Sprintf("Compressed files into '%s'.", name),
				Metadata: map[string]any{"archive": archive, "entries": len(sources)},
			}, nil
		})
}

// Compress writes sources into archive. Each source is stored under its
// base name; directories are added recursively. gz and bz2 produce
// compressed tarballs.
func Compress(ctx context.Context, archive, format string, sources []string) (err error) {
	switch format {
	case "zip", "tar", "gz", "bz2":
	default:
		return fmt.Errorf("Unsupported compression format '%s'.", format)
	}

	f, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(archive)
		}
	}()

	if format == "zip" {
		zw := zip.NewWriter(f)
		if err := addAll(ctx, sources, archive, zipAdder(zw)); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}

	var w io.Writer = f
	var closer io.Closer
	switch format {
	case "gz":
		gz := gzip.NewWriter(f)
		w, closer = gz, gz
	case "bz2":
		bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return err
		}
		w, closer = bz, bz
	}

	tw := tar.NewWriter(w)
	if err := addAll(ctx, sources, archive, tarAdder(tw)); err != nil {
		tw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

type adder func(path, name string, info fs.FileInfo) error

func addAll(ctx context.Context, sources []string, archive string, add adder) error {
	for _, src := range sources {
		base := filepath.Dir(src)
		err := filepath.Walk(src, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == archive {
				return nil
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			return add(path, filepath.ToSlash(rel), info)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func zipAdder(zw *zip.Writer) adder {
	return func(path, name string, info fs.FileInfo) error {
		if info.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		return copyFrom(w, path)
	}
}

func tarAdder(tw *tar.Writer) adder {
	return func(path, name string, info fs.FileInfo) error {
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = name
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return copyFrom(tw, path)
	}
}

func copyFrom(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (o *ops) uncompressArchive() command.Command {
	return command.New("uncompress_archive", "Uncompress a .zip, .tar, .gz or .bz2 archive file to a directory", command.CategoryFile,
		[]command.Arg{{Name: "archive_path", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				ArchivePath string `json:"archive_path"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			path, err := cctx.Resolve(in.ArchivePath)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil, fmt.Errorf("'%s' is not a file.", in.ArchivePath)
			}

			ext := filepath.Ext(path)
			dest := strings.TrimSuffix(path, ext)
			n, err := Extract(ctx, path, dest)
			if err != nil {
				return nil, err
			}
			display := strings.TrimSuffix(in.ArchivePath, ext)
			return &command.Result{
				Title:    filepath.Base(dest),
				Output:   fmt.Sprintf("Uncompressed '%s' into '%s'.", in.ArchivePath, display),
				Metadata: map[string]any{"directory": dest, "entries": n},
			}, nil
		})
}

// Extract unpacks archive into dest based on its extension and returns the
// number of entries written.
func Extract(ctx context.Context, archive, dest string) (int, error) {
	ext := strings.ToLower(filepath.Ext(archive))
	switch ext {
	case ".zip", ".tar", ".gz", ".bz2":
	default:
		return 0, fmt.Errorf("Unsupported archive format '%s'.", ext)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, err
	}
	if ext == ".zip" {
		return extractZip(ctx, archive, dest)
	}

	f, err := os.Open(archive)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var r io.Reader = f
	switch ext {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case ".bz2":
		bz, err := bzip2.NewReader(f, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create bzip2 reader: %w", err)
		}
		defer bz.Close()
		r = bz
	}
	return extractTar(ctx, tar.NewReader(r), dest)
}

// entryPath joins name under dest, rejecting names that climb out.
func entryPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !permission.IsWithinDir(target, dest) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafeEntry)
	}
	return target, nil
}

func extractZip(ctx context.Context, archive, dest string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		return 0, fmt.Errorf("%s: %w", archive, ErrUnsafeEntry)
	}
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	n := 0
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		target, err := entryPath(dest, zf.Name)
		if err != nil {
			return n, err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return n, err
			}
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return n, err
		}
		err = writeEntry(target, rc, zf.Mode().Perm())
		rc.Close()
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		header, err := tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read tar entry: %w", err)
		}
		target, err := entryPath(dest, header.Name)
		if err != nil {
			return n, err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, fs.FileMode(header.Mode).Perm()); err != nil {
				return n, err
			}
			n++
		}
	}
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
