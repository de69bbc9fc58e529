// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package messymoby

import (
	"context"
	"os/exec"

	"github.com/docker/docker/client"
	"github.com/onsi/gomega/gexec"

	gi "github.com/onsi/ginkgo/v2"
	g "github.com/onsi/gomega"
	s "github.com/thediveo/success"
)

// HarnessLabel is the name of the label tagging the containers and networks
// of the hostprobe test harness.
const HarnessLabel = "hostprobe-test"

// NewClient returns a new Docker client connected to the default socket API
// location on the local host.
func NewClient() *client.Client {
	gi.GinkgoHelper()

	return s.Successful(client.NewClientWithOpts(
		client.WithHost("unix:///var/run/docker.sock"),
		client.WithAPIVersionNegotiation(),
	))
}

// DockerCompose executes "docker compose" with the specified CLI arguments,
// waiting for it to gracefully finish with exit code 0.
func DockerCompose(ctx context.Context, args ...string) {
	gi.GinkgoHelper()

	args = append([]string{"compose"}, args...)
	dc := exec.Command("docker", args...)
	sess := s.Successful(gexec.Start(dc, gi.GinkgoWriter, gi.GinkgoWriter))
	g.Eventually(sess).WithContext(ctx).Should(gexec.Exit(0))
}

// Cleanup removes dead harness containers as well as duplicate harness
// networks left over from earlier test runs.
func Cleanup(ctx context.Context) {
	gi.GinkgoHelper()

	cln := NewClient()
	defer cln.Close()
	g.Expect(RemoveDeadTestContainers(ctx, cln, HarnessLabel)).To(g.Succeed())
	g.Expect(RemoveDuplicateTestNetworks(ctx, cln, HarnessLabel)).To(g.Succeed())
}
