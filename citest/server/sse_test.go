package server_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/agentcmd/citest/testutil"
)

var _ = Describe("Event Stream", func() {
	var sse *testutil.SSEClient
	var cancel context.CancelFunc

	BeforeEach(func() {
		var sseCtx context.Context
		sseCtx, cancel = context.WithCancel(ctx)
		sse = testServer.SSEClient()
		Expect(sse.Connect(sseCtx, "/event")).To(Succeed())
		_, err := sse.WaitForEvent("server.connected", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sse.Close()
		cancel()
	})

	It("should stream the lifecycle of an invocation", func() {
		name := testutil.UniqueName("sse", ".txt")
		defer os.Remove(testServer.WorkspacePath(name))

		_, err := client.Invoke(ctx, "write_to_file", map[string]any{"filename": name, "text": "x"})
		Expect(err).NotTo(HaveOccurred())

		// Delivery order across event types is not guaranteed.
		events := sse.CollectEvents(2 * time.Second)
		Expect(events.Has("command.started")).To(BeTrue())
		Expect(events.Has("file.edited")).To(BeTrue())

		finished := events.Of("command.finished")
		Expect(finished).NotTo(BeEmpty())
		var data testutil.CommandEventData
		Expect(finished[0].Payload(&data)).To(Succeed())
		Expect(data.Command).To(Equal("write_to_file"))
		Expect(data.CallID).NotTo(BeEmpty())
		Expect(data.Error).To(BeEmpty())

		edited := events.Of("file.edited")
		var file testutil.FileEventData
		Expect(edited[0].Payload(&file)).To(Succeed())
		Expect(file.File).To(Equal(testServer.WorkspacePath(name)))
		Expect(file.Operation).To(Equal("write"))
	})

	It("should carry the error of a failed command", func() {
		_, err := client.Invoke(ctx, "read_file", map[string]any{"filename": "does-not-exist.txt"})
		Expect(err).NotTo(HaveOccurred())

		evt, err := sse.WaitForEvent("command.finished", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
		var data testutil.CommandEventData
		Expect(evt.Payload(&data)).To(Succeed())
		Expect(data.Command).To(Equal("read_file"))
		Expect(data.Error).NotTo(BeEmpty())
	})
})
