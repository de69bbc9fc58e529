// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/siemens/hostprobe/dnsworker"
	"github.com/siemens/hostprobe/messymoby"
	"github.com/siemens/hostprobe/probe"
	"github.com/siemens/hostprobe/test"
	"github.com/siemens/hostprobe/transport"
	"github.com/siemens/hostprobe/types"

	"github.com/miekg/dns"
	"github.com/thediveo/lxkns/containerizer/whalefriend"
	"github.com/thediveo/lxkns/discover"
	"github.com/thediveo/lxkns/model"
	"github.com/thediveo/whalewatcher/watcher"
	"github.com/thediveo/whalewatcher/watcher/moby"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/namspill"
	. "github.com/thediveo/success"
)

var _ = Describe("probing from inside a container", Ordered, func() {

	var testcntr *model.Container

	BeforeAll(NodeTimeout(20*time.Second), func(specctx context.Context) {
		if os.Getuid() != 0 {
			Skip("needs root")
		}

		By("running a container discovery")
		mobyw := Successful(moby.New("", nil))
		ctx, cancel := context.WithCancel(specctx)
		DeferCleanup(func() { cancel() })
		cizer := whalefriend.New(ctx, []watcher.Watcher{mobyw})
		Eventually(mobyw.Ready()).WithTimeout(2 * time.Second).Should(BeClosed())

		By("waiting for test container to come up")
		Eventually(func() *model.Container {
			disco := discover.Namespaces(
				discover.WithStandardDiscovery(),
				discover.WithContainerizer(cizer),
			)
			testcntr = disco.Containers.FirstWithName(test.CenterContainer)
			return testcntr
		}).WithContext(specctx).ShouldNot(BeNil(), "missing test container")
	})

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).Within(3 * time.Second).ProbeEvery(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
			// safeguard to catch incorrect OS-level thread locking and
			// unlocking across switching network namespaces.
			Expect(Tasks()).To(BeUniformlyNamespaced())
		})
	})

	It("discovers attached networks with their containers", NodeTimeout(30*time.Second), func(ctx context.Context) {
		cln := messymoby.NewClient()
		defer cln.Close()
		dnets, netnsref := Successful2R(DiscoverAttachedNames(ctx, cln, test.CenterContainer))
		Expect(netnsref).To(Equal(fmt.Sprintf("/proc/%d/ns/net", testcntr.Process.PID)))
		Expect(dnets).To(ContainElements(
			And(
				HaveField("Label", "net_A"),
				HaveField("Labels", ContainElements("foo", "test-foo-1", "test-foo-2")),
			),
			And(
				HaveField("Label", "net_B"),
				HaveField("Labels", ContainElements("bar", "test-bar-1")),
			),
			And(
				HaveField("Label", "net_C"),
				HaveField("Labels", ContainElements("foo", "test-foo-1", "test-foo-2")),
			),
		))
	})

	It("probes attached containers by name", NodeTimeout(30*time.Second), func(ctx context.Context) {
		netnsref := testcntr.Process.Namespaces[model.NetNS].Ref()[0]
		resolver := Successful(dnsworker.New(ctx, 2, &dns.Client{Net: "udp"}, EmbeddedDNS,
			dnsworker.InNetworkNamespace(netnsref)))
		defer resolver.StopWait()
		tcp := transport.NewTCP(
			transport.InNetworkNamespace(netnsref),
			transport.WithResolver(resolver))

		By("probing an echoing foo for its magic")
		magic := probe.New(types.Target{Host: "foo.net_A", Port: 7},
			probe.Magic([]byte("hostprobe")), probe.WithTransport(tcp))
		Expect(magic.Run(ctx)).To(And(
			HaveField("Kind", types.OK),
			HaveField("Details", ContainSubstring("hostprobe"))))

		By("probing bar for its HTTP server header")
		header := probe.New(types.Target{Host: "bar.net_B", Port: 80},
			probe.Header("server"), probe.WithTransport(tcp))
		Expect(header.Run(ctx)).To(And(
			HaveField("Kind", types.OK),
			HaveField("Details", HavePrefix("nginx"))))

		By("failing to resolve unknown names")
		unknown := probe.New(types.Target{Host: "nowhere.net_A", Port: 80},
			probe.Header("server"), probe.WithTransport(tcp))
		Expect(unknown.Run(ctx)).To(HaveField("Kind", types.ConnErr))
	})

})
