package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/event"
	"github.com/opencode-ai/agentcmd/internal/permission"
)

type harness struct {
	reg *command.Registry
	dir string
	log *OpLog
	mem *memoryStub
	bus *event.Bus
}

func setup(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	reg := command.NewRegistry(dir, nil)
	reg.SetBus(bus)
	h := &harness{
		reg: reg,
		dir: dir,
		log: NewOpLog(filepath.Join(dir, ".agentcmd", "file_logger.txt")),
		mem: &memoryStub{},
		bus: bus,
	}
	Register(reg, Options{Log: h.log, Memory: h.mem, AllowDownloads: true, Bus: bus})
	return h
}

func (h *harness) invoke(t *testing.T, name string, args map[string]any) (*command.Result, error) {
	t.Helper()
	input, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	return h.reg.Invoke(context.Background(), name, input)
}

func (h *harness) mustInvoke(t *testing.T, name string, args map[string]any) *command.Result {
	t.Helper()
	result, err := h.invoke(t, name, args)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return result
}

func (h *harness) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegister_Catalog(t *testing.T) {
	h := setup(t)
	want := []string{
		"read_file", "write_to_file", "append_to_file", "delete_file", "list_files",
		"download_file", "create_directory", "rename_directory", "delete_directory",
		"copy_file", "rename_file", "get_file_info", "change_permissions",
		"change_owner_group", "get_file_size", "compress_files", "uncompress_archive",
		"ingest_file",
	}
	got := h.reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names = %v", got)
	}
}

func TestRegister_DownloadGate(t *testing.T) {
	reg := command.NewRegistry(t.TempDir(), nil)
	Register(reg, Options{Log: NewOpLog(filepath.Join(t.TempDir(), "log"))})

	gate, _ := reg.Gate("download_file")
	if gate.Enabled || gate.Reason != DownloadDisabledReason {
		t.Errorf("download_file gate = %+v", gate)
	}
	gate, _ = reg.Gate("ingest_file")
	if gate.Enabled {
		t.Error("ingest_file should be disabled without memory")
	}
}

func TestWriteToFile(t *testing.T) {
	h := setup(t)

	edited := make(chan event.FileEditedData, 1)
	h.bus.Subscribe(event.FileEdited, func(e event.Event) {
		select {
		case edited <- e.Data.(event.FileEditedData):
		default:
		}
	})

	result := h.mustInvoke(t, "write_to_file", map[string]any{"filename": "sub/dir/a.txt", "text": "one\n"})
	if result.Output != "File written to successfully." {
		t.Errorf("Output = %q", result.Output)
	}
	data, err := os.ReadFile(filepath.Join(h.dir, "sub", "dir", "a.txt"))
	if err != nil || string(data) != "one\n" {
		t.Fatalf("file content = %q, %v", data, err)
	}

	select {
	case e := <-edited:
		if e.Operation != "write" || !strings.HasSuffix(e.File, "a.txt") {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no file.edited event")
	}

	// Same content again is reported, not rewritten.
	_, err = h.invoke(t, "write_to_file", map[string]any{"filename": "sub/dir/a.txt", "text": "one\n"})
	if !errors.Is(err, ErrAlreadyUpdated) {
		t.Fatalf("expected ErrAlreadyUpdated, got %v", err)
	}
	if got := command.Reply(nil, err); got != "Error: File has already been updated." {
		t.Errorf("reply = %q", got)
	}

	result = h.mustInvoke(t, "write_to_file", map[string]any{"filename": "sub/dir/a.txt", "text": "two\n"})
	if result.Metadata["additions"] != 1 || result.Metadata["deletions"] != 1 {
		t.Errorf("diff counts = %v/%v", result.Metadata["additions"], result.Metadata["deletions"])
	}
	if diff, _ := result.Metadata["diff"].(string); !strings.Contains(diff, "+two") {
		t.Errorf("diff = %q", diff)
	}
}

func TestWriteToFile_OutsideWorkspace(t *testing.T) {
	h := setup(t)
	_, err := h.invoke(t, "write_to_file", map[string]any{"filename": "../escape.txt", "text": "x"})
	if !errors.Is(err, permission.ErrOutsideWorkspace) {
		t.Fatalf("expected ErrOutsideWorkspace, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	h := setup(t)
	h.write(t, "r.txt", "content")

	result := h.mustInvoke(t, "read_file", map[string]any{"filename": "r.txt"})
	if result.Output != "content" {
		t.Errorf("Output = %q", result.Output)
	}

	_, err := h.invoke(t, "read_file", map[string]any{"filename": "missing.txt"})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAppendToFile(t *testing.T) {
	h := setup(t)
	h.write(t, "log.txt", "a")

	result := h.mustInvoke(t, "append_to_file", map[string]any{"filename": "log.txt", "text": "b"})
	if result.Output != "Text appended successfully." {
		t.Errorf("Output = %q", result.Output)
	}
	data, _ := os.ReadFile(filepath.Join(h.dir, "log.txt"))
	if string(data) != "ab" {
		t.Errorf("content = %q", data)
	}

	state, err := h.log.State()
	if err != nil {
		t.Fatal(err)
	}
	if state[filepath.Join(h.dir, "log.txt")] != Checksum("ab") {
		t.Errorf("append should log checksum of the full content, state = %v", state)
	}

	// Writing the full content now counts as a duplicate.
	_, err = h.invoke(t, "write_to_file", map[string]any{"filename": "log.txt", "text": "ab"})
	if !errors.Is(err, ErrAlreadyUpdated) {
		t.Errorf("expected duplicate write, got %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	h := setup(t)
	h.write(t, "gone.txt", "x")

	result := h.mustInvoke(t, "delete_file", map[string]any{"filename": "gone.txt"})
	if result.Output != "File deleted successfully." {
		t.Errorf("Output = %q", result.Output)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "gone.txt")); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}

	_, err := h.invoke(t, "delete_file", map[string]any{"filename": "gone.txt"})
	if !errors.Is(err, ErrAlreadyDeleted) {
		t.Fatalf("expected ErrAlreadyDeleted, got %v", err)
	}

	// A file never touched by the agent can still be deleted.
	h.write(t, "preexisting.txt", "y")
	h.mustInvoke(t, "delete_file", map[string]any{"filename": "preexisting.txt"})
}

func TestListFiles(t *testing.T) {
	h := setup(t)
	h.write(t, "a.txt", "")
	h.write(t, "src/b.go", "")
	h.write(t, "src/.hidden", "")
	h.write(t, ".git/config", "")
	h.write(t, "build/out.bin", "")

	result := h.mustInvoke(t, "list_files", map[string]any{"directory": ".", "ignore": []string{"build/**"}})
	var files []string
	if err := json.Unmarshal([]byte(result.Output), &files); err != nil {
		t.Fatalf("output is not a JSON list: %v", err)
	}
	want := []string{"a.txt", filepath.Join("src", "b.go")}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", files, want)
	}

	result = h.mustInvoke(t, "list_files", map[string]any{"directory": "src"})
	if !strings.Contains(result.Output, `"src/b.go"`) {
		t.Errorf("paths should be relative to the workspace: %s", result.Output)
	}

	_, err := h.invoke(t, "list_files", map[string]any{"directory": ".", "ignore": []string{"[bad"}})
	if err == nil {
		t.Error("expected invalid pattern error")
	}
}

func TestDownloadFile(t *testing.T) {
	retryInterval = time.Millisecond
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky":
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(strings.Repeat("x", 2048)))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := setup(t)
	result := h.mustInvoke(t, "download_file", map[string]any{"url": srv.URL + "/flaky", "filename": "dl/file.bin"})
	if !strings.HasPrefix(result.Output, `Successfully downloaded and locally stored file: "dl/file.bin"!`) {
		t.Errorf("Output = %q", result.Output)
	}
	if !strings.Contains(result.Output, "2.0 kB") {
		t.Errorf("size should be humanized: %q", result.Output)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want a retry after 503", calls.Load())
	}

	_, err := h.invoke(t, "download_file", map[string]any{"url": srv.URL + "/missing", "filename": "m.bin"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
	if !strings.HasPrefix(command.Reply(nil, err), "Got an HTTP Error whilst trying to download file:") {
		t.Errorf("reply = %q", command.Reply(nil, err))
	}

	_, err = h.invoke(t, "download_file", map[string]any{"url": "ftp://example.com/x", "filename": "x"})
	if err == nil {
		t.Error("non-http URL should fail")
	}
}

func TestDirectories(t *testing.T) {
	h := setup(t)

	result := h.mustInvoke(t, "create_directory", map[string]any{"directory_path_name": "d1/nested"})
	if result.Output != "Directory 'd1/nested' created." {
		t.Errorf("Output = %q", result.Output)
	}
	result = h.mustInvoke(t, "create_directory", map[string]any{"directory_path_name": "d1/nested"})
	if result.Output != "Directory 'd1/nested' already exists." {
		t.Errorf("Output = %q", result.Output)
	}

	result = h.mustInvoke(t, "rename_directory", map[string]any{"old_path": "d1", "new_path": "d2"})
	if result.Output != "Directory renamed from 'd1' to 'd2'." {
		t.Errorf("Output = %q", result.Output)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "d2", "nested")); err != nil {
		t.Errorf("renamed directory missing: %v", err)
	}

	_, err := h.invoke(t, "rename_directory", map[string]any{"old_path": "nope", "new_path": "x"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}

	result = h.mustInvoke(t, "delete_directory", map[string]any{"directory_path": "d2"})
	if result.Output != "Directory 'd2' deleted." {
		t.Errorf("Output = %q", result.Output)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "d2")); !os.IsNotExist(err) {
		t.Error("directory should be removed")
	}

	if _, err := h.invoke(t, "delete_directory", map[string]any{"directory_path": "."}); err == nil {
		t.Error("deleting the workspace root should fail")
	}
}

func TestCopyAndRenameFile(t *testing.T) {
	h := setup(t)
	src := h.write(t, "src.sh", "#!/bin/sh\n")
	os.Chmod(src, 0755)
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	os.Chtimes(src, mtime, mtime)

	result := h.mustInvoke(t, "copy_file", map[string]any{"source": "src.sh", "destination": "dst.sh"})
	if result.Output != "File 'src.sh' copied to 'dst.sh'." {
		t.Errorf("Output = %q", result.Output)
	}
	info, err := os.Stat(filepath.Join(h.dir, "dst.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %v", info.Mode())
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v", info.ModTime())
	}

	_, err = h.invoke(t, "copy_file", map[string]any{"source": "missing", "destination": "x"})
	if err == nil || !strings.Contains(err.Error(), "File 'missing' not found.") {
		t.Errorf("err = %v", err)
	}

	result = h.mustInvoke(t, "rename_file", map[string]any{"old_path": "dst.sh", "new_path": "moved.sh"})
	if result.Output != "File renamed from 'dst.sh' to 'moved.sh'." {
		t.Errorf("Output = %q", result.Output)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "moved.sh")); err != nil {
		t.Error(err)
	}
}

func TestCopyFile_OntoItself(t *testing.T) {
	h := setup(t)
	h.write(t, "a.txt", "precious")

	for _, dst := range []string{".", "a.txt"} {
		_, err := h.invoke(t, "copy_file", map[string]any{"source": "a.txt", "destination": dst})
		if !errors.Is(err, ErrSameFile) {
			t.Errorf("destination %q: err = %v, want ErrSameFile", dst, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(h.dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "precious" {
		t.Errorf("source content = %q", data)
	}
}

func TestFileInfoAndSize(t *testing.T) {
	h := setup(t)
	h.write(t, "info/data.json", `{"a":1}`)
	h.write(t, "info/b.txt", "12345")

	result := h.mustInvoke(t, "get_file_info", map[string]any{"file_path": "info/data.json"})
	for _, want := range []string{"File info for 'info/data.json':", "- Size: 7 bytes", "application/json", "- Permissions: 644"} {
		if !strings.Contains(result.Output, want) {
			t.Errorf("info missing %q:\n%s", want, result.Output)
		}
	}

	result = h.mustInvoke(t, "get_file_size", map[string]any{"target_path": "info/b.txt"})
	if result.Output != "File size of 'info/b.txt' is 5 bytes." {
		t.Errorf("Output = %q", result.Output)
	}
	result = h.mustInvoke(t, "get_file_size", map[string]any{"target_path": "info"})
	if result.Output != "Total size of 'info' is 12 bytes with 2 files." {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestChangePermissions(t *testing.T) {
	h := setup(t)
	h.write(t, "perm/a.txt", "")
	h.write(t, "perm/sub/b.txt", "")

	result := h.mustInvoke(t, "change_permissions", map[string]any{"target_path": "perm", "permissions": "750"})
	if result.Output != "Changed permissions of 'perm' to 750 recursively." {
		t.Errorf("Output = %q", result.Output)
	}
	for _, p := range []string{"perm", "perm/a.txt", "perm/sub", "perm/sub/b.txt"} {
		info, err := os.Stat(filepath.Join(h.dir, p))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0750 {
			t.Errorf("%s mode = %o", p, info.Mode().Perm())
		}
	}

	if _, err := h.invoke(t, "change_permissions", map[string]any{"target_path": "perm", "permissions": "abc"}); err == nil {
		t.Error("invalid octal should fail")
	}
}

func TestChangeOwnerGroup_CurrentUser(t *testing.T) {
	h := setup(t)
	path := h.write(t, "own.txt", "")
	uid, gid := os.Getuid(), os.Getgid()

	result := h.mustInvoke(t, "change_owner_group", map[string]any{
		"target_path": "own.txt",
		"owner":       itoa(uid),
		"group":       itoa(gid),
	})
	if !strings.HasPrefix(result.Output, "Changed owner and group of 'own.txt'") {
		t.Errorf("Output = %q", result.Output)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func TestCompressAndUncompress(t *testing.T) {
	for _, format := range []string{"zip", "tar", "gz", "bz2"} {
		t.Run(format, func(t *testing.T) {
			h := setup(t)
			h.write(t, "pkg/a.txt", "alpha")
			h.write(t, "pkg/nested/b.txt", "beta")
			h.write(t, "c.txt", "gamma")

			result := h.mustInvoke(t, "compress_files", map[string]any{
				"target_paths":       "pkg, c.txt, missing.txt",
				"compression_format": format,
				"output_file":        "bundle",
			})
			if result.Output != "Compressed files into 'bundle."+format+"'." {
				t.Errorf("Output = %q", result.Output)
			}

			result = h.mustInvoke(t, "uncompress_archive", map[string]any{"archive_path": "bundle." + format})
			if result.Output != "Uncompressed 'bundle."+format+"' into 'bundle'." {
				t.Errorf("Output = %q", result.Output)
			}
			for rel, want := range map[string]string{
				"bundle/pkg/a.txt":        "alpha",
				"bundle/pkg/nested/b.txt": "beta",
				"bundle/c.txt":            "gamma",
			} {
				data, err := os.ReadFile(filepath.Join(h.dir, rel))
				if err != nil || string(data) != want {
					t.Errorf("%s = %q, %v", rel, data, err)
				}
			}
		})
	}
}

func TestCompress_DefaultsAndErrors(t *testing.T) {
	h := setup(t)
	h.write(t, "x.txt", "x")

	result := h.mustInvoke(t, "compress_files", map[string]any{"target_paths": "x.txt"})
	if result.Output != "Compressed files into 'output.zip'." {
		t.Errorf("Output = %q", result.Output)
	}
	_, err := h.invoke(t, "compress_files", map[string]any{"target_paths": "x.txt", "compression_format": "rar"})
	if err == nil || !strings.Contains(err.Error(), "Unsupported compression format 'rar'.") {
		t.Errorf("err = %v", err)
	}

	h.write(t, "notes.rar", "x")
	_, err = h.invoke(t, "uncompress_archive", map[string]any{"archive_path": "notes.rar"})
	if err == nil || !strings.Contains(err.Error(), "Unsupported archive format") {
		t.Errorf("err = %v", err)
	}
	_, err = h.invoke(t, "uncompress_archive", map[string]any{"archive_path": "nothing.zip"})
	if err == nil || !strings.Contains(err.Error(), "is not a file") {
		t.Errorf("err = %v", err)
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../../escape.txt": "x"})

	_, err := Extract(context.Background(), archive, filepath.Join(dir, "evil"))
	if !errors.Is(err, ErrUnsafeEntry) {
		t.Fatalf("expected ErrUnsafeEntry, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "escape.txt")); err == nil {
		t.Error("entry escaped the target directory")
	}
}

func TestIngestFile(t *testing.T) {
	h := setup(t)
	h.write(t, "book.txt", strings.Repeat("a", 10))

	result := h.mustInvoke(t, "ingest_file", map[string]any{"filename": "book.txt", "max_length": 4, "overlap": 0})
	if result.Output != "Ingested 3 chunks from book.txt into memory." {
		t.Errorf("Output = %q", result.Output)
	}
	if len(h.mem.added) != 3 {
		t.Errorf("memory entries = %d", len(h.mem.added))
	}
}
