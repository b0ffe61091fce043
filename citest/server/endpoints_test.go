package server_test

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/agentcmd/citest/testutil"
)

var _ = Describe("Command Endpoints", func() {
	Describe("GET /path", func() {
		It("should report the workspace", func() {
			resp, err := client.Get(ctx, "/path")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]string
			Expect(resp.JSON(&body)).To(Succeed())
			Expect(body["directory"]).To(Equal(testServer.WorkDir))
		})
	})

	Describe("GET /command", func() {
		It("should list every command with its gate", func() {
			infos, err := client.ListCommands(ctx)
			Expect(err).NotTo(HaveOccurred())

			byName := map[string]testutil.CommandInfo{}
			for _, info := range infos {
				byName[info.Name] = info
			}
			Expect(byName).To(HaveKey("read_file"))
			Expect(byName).To(HaveKey("git_commit"))
			Expect(byName).To(HaveKey("shutdown"))

			Expect(byName["execute_shell"].Enabled).To(BeTrue())
			Expect(byName["download_file"].Enabled).To(BeFalse())
			Expect(byName["download_file"].DisabledFor).To(ContainSubstring("ALLOW_DOWNLOADS"))
			Expect(byName["git_push"].Enabled).To(BeFalse())
		})

		It("should keep file operations ahead of task statuses", func() {
			infos, err := client.ListCommands(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).NotTo(BeEmpty())
			Expect(infos[0].Category).To(Equal("file_operations"))

			firstTask := -1
			for i, info := range infos {
				if info.Category == "task_statuses" && firstTask < 0 {
					firstTask = i
				}
				if firstTask >= 0 && info.Plugin == "" {
					Expect(info.Category).To(Equal("task_statuses"))
				}
			}
			Expect(firstTask).To(BeNumerically(">", 0))
		})
	})

	Describe("GET /command/{name}", func() {
		It("should describe one command", func() {
			resp, err := client.Get(ctx, "/command/write_to_file")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var info testutil.CommandInfo
			Expect(resp.JSON(&info)).To(Succeed())
			Expect(info.Label).To(Equal("Write to file"))
			Expect(info.Args).To(HaveLen(2))
			Expect(info.Args[0].Name).To(Equal("filename"))
		})

		It("should return 404 for unknown commands", func() {
			resp, err := client.Get(ctx, "/command/nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /command/{name}", func() {
		var name string

		BeforeEach(func() {
			name = testutil.UniqueName("note", ".txt")
		})

		AfterEach(func() {
			os.Remove(testServer.WorkspacePath(name))
		})

		It("should write and read a file in the workspace", func() {
			result, err := client.Invoke(ctx, "write_to_file", map[string]any{"filename": name, "text": "hello\n"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reply).To(Equal("File written to successfully."))
			Expect(result.Error).To(BeEmpty())

			data, err := testServer.ReadWorkspaceFile(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("hello\n"))

			result, err = client.Invoke(ctx, "read_file", map[string]any{"filename": name})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reply).To(Equal("hello\n"))
		})

		It("should list seeded files relative to the workspace", func() {
			dir := testutil.UniqueName("tree", "")
			DeferCleanup(os.RemoveAll, testServer.WorkspacePath(dir))
			for _, rel := range []string{"a.go", "b_test.go", "sub/c.go"} {
				_, err := testServer.WriteWorkspaceFile(dir+"/"+rel, "package x\n")
				Expect(err).NotTo(HaveOccurred())
			}

			result, err := client.Invoke(ctx, "list_files", map[string]any{
				"directory": dir,
				"ignore":    []string{"**/*_test.go"},
			})
			Expect(err).NotTo(HaveOccurred())

			var files []string
			Expect(json.Unmarshal([]byte(result.Reply), &files)).To(Succeed())
			Expect(files).To(ConsistOf(dir+"/a.go", dir+"/sub/c.go"))
			Expect(result.Metadata).To(HaveKeyWithValue("count", BeNumerically("==", 2)))
		})

		It("should report command failures in the reply", func() {
			result, err := client.Invoke(ctx, "read_file", map[string]any{"filename": "missing-" + name})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reply).To(HavePrefix("Error: "))
			Expect(result.Error).NotTo(BeEmpty())
		})

		It("should reject paths outside the workspace", func() {
			result, err := client.Invoke(ctx, "read_file", map[string]any{"filename": "../../etc/passwd"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reply).To(ContainSubstring("outside the workspace"))
		})

		It("should run shell commands in the workspace", func() {
			result, err := client.Invoke(ctx, "execute_shell", map[string]any{"command_line": "pwd"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reply).To(HavePrefix("STDOUT:\n" + testServer.WorkDir))
		})

		It("should suggest a close command name", func() {
			resp, err := client.Post(ctx, "/command/write_to_fil", map[string]any{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			var apiErr testutil.APIError
			Expect(resp.JSON(&apiErr)).To(Succeed())
			Expect(apiErr.Error.Code).To(Equal("NOT_FOUND"))
			Expect(apiErr.Error.Details).To(HaveKeyWithValue("suggestion", "write_to_file"))
		})

		It("should refuse disabled commands", func() {
			resp, err := client.Post(ctx, "/command/download_file", map[string]any{"url": "http://example.com", "filename": name})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

			var apiErr testutil.APIError
			Expect(resp.JSON(&apiErr)).To(Succeed())
			Expect(apiErr.Error.Code).To(Equal("PERMISSION_DENIED"))
			Expect(apiErr.Error.Details["reason"]).To(ContainSubstring("ALLOW_DOWNLOADS"))
		})

		It("should reject a body that is not an object", func() {
			resp, err := client.PostRaw(ctx, "/command/read_file", `["x"]`)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should name the missing argument", func() {
			resp, err := client.Post(ctx, "/command/write_to_file", map[string]any{"filename": name})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var apiErr testutil.APIError
			Expect(resp.JSON(&apiErr)).To(Succeed())
			Expect(apiErr.Error.Details).To(HaveKeyWithValue("arg", "text"))
		})
	})

	Describe("GET /catalog", func() {
		It("should render markdown by default", func() {
			out, err := client.Catalog(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HavePrefix("# Commands"))
			Expect(out).To(ContainSubstring("## File Operations"))
			Expect(out).To(ContainSubstring(`- [x] read_file: Read file (args: "filename": "<filename>")`))
		})

		It("should render json", func() {
			out, err := client.Catalog(ctx, "json")
			Expect(err).NotTo(HaveOccurred())

			var infos []testutil.CommandInfo
			Expect(json.Unmarshal([]byte(out), &infos)).To(Succeed())
			Expect(infos).NotTo(BeEmpty())
		})

		It("should filter by category", func() {
			out, err := client.Catalog(ctx, "text")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("git_commit"))

			resp, err := client.Get(ctx, "/catalog", testutil.WithQuery(map[string]string{"category": "task_statuses", "format": "yaml"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.String()).To(ContainSubstring("name: shutdown"))
			Expect(strings.Contains(resp.String(), "read_file")).To(BeFalse())
		})

		It("should reject unknown formats", func() {
			resp, err := client.Get(ctx, "/catalog", testutil.WithQuery(map[string]string{"format": "xml"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
