package server_test

import (
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/agentcmd/citest/testutil"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

var _ = Describe("Configured server", func() {
	var (
		ts  *testutil.TestServer
		dir string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("kept\n"), 0o644)).To(Succeed())

		var err error
		ts, err = testutil.StartTestServer(
			testutil.WithWorkDir(dir),
			testutil.WithConfig(func(c *types.Config) {
				c.DisabledCategories = []string{"git_operations"}
				c.Commands = map[string]bool{"delete_file": false}
			}),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ts.Stop()).To(Succeed())
	})

	It("should serve the given workspace", func() {
		result, err := ts.Client().Invoke(ctx, "read_file", map[string]any{"filename": "existing.txt"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Error).To(BeEmpty())
		Expect(result.Reply).To(ContainSubstring("kept"))
	})

	It("should refuse a disabled category", func() {
		resp, err := ts.Client().Post(ctx, "/command/git_status", map[string]any{"repo_path": "."})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("should refuse a command switched off by name and keep the file", func() {
		resp, err := ts.Client().Post(ctx, "/command/delete_file", map[string]any{"filename": "existing.txt"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		Expect(filepath.Join(dir, "existing.txt")).To(BeAnExistingFile())
	})

	It("should list switched off commands as disabled", func() {
		infos, err := ts.Client().ListCommands(ctx)
		Expect(err).NotTo(HaveOccurred())
		enabled := map[string]bool{}
		for _, info := range infos {
			enabled[info.Name] = info.Enabled
		}
		Expect(enabled).To(HaveKeyWithValue("git_status", false))
		Expect(enabled).To(HaveKeyWithValue("delete_file", false))
		Expect(enabled).To(HaveKeyWithValue("read_file", true))
	})
})
