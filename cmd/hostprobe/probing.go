// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/siemens/hostprobe/dispatch"
	"github.com/siemens/hostprobe/dnsworker"
	"github.com/siemens/hostprobe/mobynet"
	"github.com/siemens/hostprobe/probe"
	"github.com/siemens/hostprobe/transport"
	"github.com/siemens/hostprobe/types"

	"github.com/docker/docker/client"
	"github.com/miekg/dns"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

// resolverConnections is the number of DNS client connections when resolving
// host names through a specific DNS resolver.
const resolverConnections = 4

// ProbeAndReport probes either the single host in args, or otherwise all hosts
// from the host list, printing the results to the command's output. The host
// list is either the command's input, or in container mode the names of the
// containers on the networks attached to the container.
func ProbeAndReport(cmd *cobra.Command, variant probe.Variant, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	var hosts io.Reader = cmd.InOrStdin()
	netnsref := *netnsPath
	resolver := *resolverAddr
	if *containerName != "" {
		nets, ref, err := discoverContainerNets(ctx, *containerName)
		if err != nil {
			return err
		}
		netnsref = ref
		if resolver == "" {
			resolver = mobynet.EmbeddedDNS
		}
		hosts = strings.NewReader(mobynet.HostList(nets))
	}

	tcpopts := []transport.TCPOption{transport.InNetworkNamespace(netnsref)}
	if resolver != "" {
		pool, err := dnsworker.New(ctx, resolverConnections, &dns.Client{Net: "udp"}, resolver,
			dnsworker.InNetworkNamespace(netnsref))
		if err != nil {
			return err
		}
		defer pool.StopWait()
		tcpopts = append(tcpopts, transport.WithResolver(pool))
	}
	probeopts := []probe.Option{
		probe.WithTransport(transport.NewTCP(tcpopts...)),
		probe.WithConnectTimeout(*connectTimeout),
		probe.WithResponseTimeout(*waitTimeout),
	}

	s, err := newSink(cmd.OutOrStdout(), variant.Name(), *outputFormat, *colorMode)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		target := types.Target{Host: args[0], Port: int(*port)}
		log.Debugf("probing single host %s", target)
		return s.Render(probe.New(target, variant, probeopts...).Run(ctx))
	}

	return probeHostList(ctx, cmd.ErrOrStderr(), s, hosts, func(target types.Target) dispatch.Runner {
		return probe.New(target, variant, probeopts...)
	})
}

// probeHostList probes all hosts from the host list, rendering the results as
// they come in, and progress information to errw.
func probeHostList(ctx context.Context, errw io.Writer, s *sink, hosts io.Reader, factory dispatch.ProbeFactory) error {
	opts := []dispatch.Option{
		dispatch.WithMaxOutstanding(int(*workerNumber)),
		dispatch.WithPort(int(*port)),
		dispatch.WithCooldown(*cooldown),
		dispatch.WithNotify(int(*notifyLines)),
		dispatch.WithRate(*rateLimit),
	}
	var progress *liveProgress
	if *live {
		progress = newLiveProgress(errw, *spinnerInterval)
		defer progress.Stop()
	} else {
		opts = append(opts, dispatch.WithProgress(func(p dispatch.Progress) {
			if p.InputFinished {
				fmt.Fprintln(errw, "* Input finished.")
				return
			}
			fmt.Fprintf(errw, "* %d processed\n", p.Lines)
		}))
	}
	d, news := dispatch.New(factory, opts...)
	if progress != nil {
		progress.Track(d.Stats)
	}

	// Render results while the dispatcher runs; a rendering failure, such as
	// a closed pipe, doesn't stop the dispatcher, so keep draining.
	rendered := make(chan error, 1)
	go func() {
		var renderErr error
		for res := range news {
			if err := s.Render(res); err != nil && renderErr == nil {
				renderErr = err
			}
		}
		rendered <- renderErr
	}()
	err := d.Run(ctx, hosts)
	renderErr := <-rendered
	stats := d.Stats()
	log.Debugf("probed %d hosts, skipped %d unsupported addresses, peak of %d probes in flight",
		stats.Completed, stats.Skipped, stats.Peak)
	if err != nil {
		return err
	}
	return renderErr
}

// discoverContainerNets returns the Docker networks attached to the named
// container, together with the path of the container's network namespace.
func discoverContainerNets(ctx context.Context, name string) ([]mobynet.DockerNetwork, string, error) {
	cln, err := client.NewClientWithOpts(
		client.WithHost("unix:///var/run/docker.sock"),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("cannot connect to the Docker daemon: %w", err)
	}
	defer cln.Close()
	nets, netnsref, err := mobynet.DiscoverAttachedNames(ctx, cln, name)
	if err != nil {
		return nil, "", fmt.Errorf("cannot discover attached networks and their containers: %w", err)
	}
	return nets, netnsref, nil
}
