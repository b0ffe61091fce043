package server_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/agentcmd/citest/testutil"
)

// Runs against its own server so the suite server keeps serving.
var _ = Describe("Shutdown", func() {
	It("should answer the agent and signal the server to stop", func() {
		ts, err := testutil.StartTestServer()
		Expect(err).NotTo(HaveOccurred())
		defer ts.Stop()

		result, err := ts.Client().Invoke(ctx, "shutdown", map[string]any{"reason": "all tasks complete"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Shutdown).To(BeTrue())
		Expect(result.Reply).To(Equal("Shutting down: all tasks complete"))

		Eventually(ts.Server.Done(), 2*time.Second).Should(BeClosed())
		Expect(ts.Server.ShutdownReason()).To(Equal("all tasks complete"))
	})

	It("should finish a graceful stop while an event stream is open", func() {
		ts, err := testutil.StartTestServer()
		Expect(err).NotTo(HaveOccurred())

		sseCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		sse := ts.SSEClient()
		defer sse.Close()
		Expect(sse.Connect(sseCtx, "/event")).To(Succeed())
		_, err = sse.WaitForEvent("server.connected", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		_, err = ts.Client().Invoke(ctx, "shutdown", map[string]any{"reason": "done"})
		Expect(err).NotTo(HaveOccurred())
		Eventually(ts.Server.Done(), 2*time.Second).Should(BeClosed())

		stopCtx, stop := context.WithTimeout(ctx, 5*time.Second)
		defer stop()
		start := time.Now()
		Expect(ts.Server.Shutdown(stopCtx)).To(Succeed())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		Expect(ts.Stop()).To(Succeed())
	})
})
