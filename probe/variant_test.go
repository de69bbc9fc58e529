// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/siemens/hostprobe/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var _ = Describe("probe variants", func() {

	Context("magic", func() {

		It("parses hex magic", func() {
			Expect(ParseMagic("666f6f0d0a")).To(Equal([]byte("foo\r\n")))
			Expect(ParseMagic("6")).Error().To(HaveOccurred())
			Expect(ParseMagic("")).Error().To(MatchError("empty magic"))
		})

		It("sends the magic with a newline", func() {
			Expect(Magic([]byte("foo")).Request(types.Target{})).To(Equal([]byte("foo\n")))
			Expect(Magic([]byte("foo")).Name()).To(Equal("magic"))
		})

		It("waits for the magic to be echoed", func() {
			m := Magic([]byte("foo"))
			_, ok := m.Interpret([]byte("fo"))
			Expect(ok).To(BeFalse())
			v, ok := m.Interpret([]byte("xfoo\n"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(Verdict{Kind: types.OK, Details: "xfoo\n"}))

			_, ok = Magic(nil).Interpret([]byte("anything"))
			Expect(ok).To(BeFalse())
		})

	})

	Context("header", func() {

		It("sends a minimal HEAD request", func() {
			h := Header("server")
			Expect(h.Name()).To(Equal("header"))
			req := string(Successful(h.Request(types.Target{Host: "example.org", Port: 80})))
			Expect(req).To(HavePrefix("HEAD / HTTP/1.1\r\n"))
			Expect(req).To(ContainSubstring("Host: example.org\r\n"))
			Expect(req).To(ContainSubstring("User-Agent: Test/1.0\r\n"))
			Expect(req).To(ContainSubstring("Connection: close\r\n"))
			Expect(req).To(HaveSuffix("\r\n\r\n"))

			req = string(Successful(h.Request(types.Target{Host: "example.org", Port: 8080})))
			Expect(req).To(ContainSubstring("Host: example.org:8080\r\n"))
		})

		DescribeTable("interprets responses",
			func(output string, decisive bool, verdict Verdict) {
				v, ok := Header("x-probe").Interpret([]byte(output))
				Expect(ok).To(Equal(decisive))
				if decisive {
					Expect(v).To(Equal(verdict))
				}
			},
			Entry("partial status line", "HT", false, Verdict{}),
			Entry("partial header", "HTTP/1.1 200 OK\r\nX-Probe: a", false, Verdict{}),
			Entry("single header", "HTTP/1.1 200 OK\r\nX-Probe: a\r\n\r\n", true,
				Verdict{Kind: types.OK, Details: "a"}),
			Entry("multiple headers", "HTTP/1.0 404 Not Found\r\nX-Probe: a\r\nx-probe: b\r\n\r\n", true,
				Verdict{Kind: types.OK, Details: "a, b"}),
			Entry("missing header", "HTTP/1.1 200 OK\r\nServer: foo\r\n\r\n", true,
				Verdict{Kind: types.OK, Details: "-"}),
			Entry("non-HTTP", "SSH-2.0-OpenSSH_9.0\r\n", true,
				Verdict{Kind: types.ERR, Details: `malformed HTTP status line "SSH-2.0-OpenSSH_9.0"`}),
			Entry("broken status code", "HTTP/1.1 abc OK\r\n\r\n", true,
				Verdict{Kind: types.ERR, Details: `malformed HTTP status code "abc"`}),
		)

		It("gives up on oversized headers", func() {
			output := append([]byte("HTTP/1.1 200 OK\r\nX-Junk: "), bytes.Repeat([]byte("x"), maxHeaderBytes)...)
			v, ok := Header("x-probe").Interpret(output)
			Expect(ok).To(BeTrue())
			Expect(v.Kind).To(Equal(types.ERR))
		})

	})

	Context("probing peers", func() {

		BeforeEach(func() {
			goodgos := Goroutines()
			DeferCleanup(func() {
				Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
					ShouldNot(HaveLeaked(goodgos))
			})
		})

		It("gets a header from an HTTP server", NodeTimeout(10*time.Second), func(ctx context.Context) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodHead))
				w.Header().Add("X-Probe", "a")
				w.Header().Add("X-Probe", "b")
			}))
			DeferCleanup(srv.Close)
			target := addrTarget(srv.Listener.Addr())

			res := New(target, Header("x-probe")).Run(ctx)
			Expect(res.Kind).To(Equal(types.OK))
			Expect(res.Details).To(Equal("a, b"))
			Expect(res.Latency).To(BeNumerically(">=", 0))

			Expect(New(target, Header("x-missing")).Run(ctx)).To(And(
				HaveField("Kind", types.OK),
				HaveField("Details", "-")))
		})

		It("reports non-HTTP servers", NodeTimeout(10*time.Second), func(ctx context.Context) {
			target := peer(func(conn net.Conn) {
				_, _ = conn.Write([]byte("SSH-2.0-OpenSSH_9.0\r\n"))
				silent(conn)
			})
			res := New(target, Header("server")).Run(ctx)
			Expect(res.Kind).To(Equal(types.ERR))
			Expect(res.Details).To(ContainSubstring("SSH-2.0"))
		})

	})

})
