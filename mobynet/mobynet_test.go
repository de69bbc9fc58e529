// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"errors"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// fakeMoby answers only container and network inspections; calling any other
// API method panics.
type fakeMoby struct {
	client.APIClient
	containers map[string]types.ContainerJSON
	networks   map[string]types.NetworkResource
}

func (m *fakeMoby) ContainerInspect(_ context.Context, nameOrID string) (types.ContainerJSON, error) {
	cntr, ok := m.containers[nameOrID]
	if !ok {
		return types.ContainerJSON{}, errors.New("no such container")
	}
	return cntr, nil
}

func (m *fakeMoby) NetworkInspect(_ context.Context, id string, _ types.NetworkInspectOptions) (types.NetworkResource, error) {
	net, ok := m.networks[id]
	if !ok {
		return types.NetworkResource{}, errors.New("no such network")
	}
	return net, nil
}

func container(name string, pid int, aliases map[string][]string) types.ContainerJSON {
	endpoints := map[string]*network.EndpointSettings{}
	for netname, al := range aliases {
		endpoints[netname] = &network.EndpointSettings{
			NetworkID: "id-" + netname,
			Aliases:   al,
		}
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			Name:  "/" + name,
			State: &types.ContainerState{Pid: pid},
		},
		NetworkSettings: &types.NetworkSettings{Networks: endpoints},
	}
}

func attached(names ...string) types.NetworkResource {
	cntrs := map[string]types.EndpointResource{}
	for _, name := range names {
		cntrs["id-"+name] = types.EndpointResource{Name: name}
	}
	return types.NetworkResource{Containers: cntrs}
}

var _ = Describe("Docker networks", func() {

	It("creates a FQDN bubble", func() {
		cnet := []DockerNetwork{
			{
				Label:  "net_A",
				Labels: []string{"foo", "foo_1", "foo_2"},
			},
			{
				Label:  "net_B",
				Labels: []string{"bar", "bar_1", "foo"},
			},
		}
		Expect(AllFQDNsOnAttachedNetworks(cnet)).To(ConsistOf(
			"foo", "foo_1", "foo_2",
			"foo.net_A", "foo_1.net_A", "foo_2.net_A",
			"bar", "bar_1", "bar.net_B", "bar_1.net_B", "foo.net_B",
		))
		Expect(HostList(nil)).To(BeEmpty())
		Expect(HostList(cnet[:1])).To(Equal("foo.net_A\nfoo_1.net_A\nfoo_2.net_A\nfoo\nfoo_1\nfoo_2\n"))
	})

	It("discovers from inspection data", func(ctx context.Context) {
		moby := &fakeMoby{
			containers: map[string]types.ContainerJSON{
				"center": container("center", 42, map[string][]string{
					"net_A": nil,
					"net_B": nil,
					"net_E": nil,
				}),
				"foo-1": container("foo-1", 1, map[string][]string{"net_A": {"foo", "f"}}),
				"bar-1": container("bar-1", 2, map[string][]string{"net_B": {"bar"}}),
			},
			networks: map[string]types.NetworkResource{
				"id-net_A": attached("center", "foo-1", "gone-1"),
				"id-net_B": attached("center", "bar-1"),
				"id-net_E": attached("center"),
			},
		}
		nets, netns := Successful2R(DiscoverAttachedNames(ctx, moby, "center"))
		Expect(netns).To(Equal("/proc/42/ns/net"))
		Expect(nets).To(HaveExactElements(
			And(
				HaveField("Label", "net_A"),
				HaveField("Labels", ConsistOf("f", "foo", "foo-1")),
			),
			And(
				HaveField("Label", "net_B"),
				HaveField("Labels", ConsistOf("bar", "bar-1")),
			),
		))
	})

	It("rejects stopped and unknown containers", func(ctx context.Context) {
		moby := &fakeMoby{
			containers: map[string]types.ContainerJSON{
				"zombie": container("zombie", 0, nil),
			},
		}
		_, _, err := DiscoverAttachedNames(ctx, moby, "zombie")
		Expect(err).To(MatchError(ContainSubstring("is not running")))
		_, _, err = DiscoverAttachedNames(ctx, moby, "nobody")
		Expect(err).To(MatchError(ContainSubstring("cannot inspect container nobody")))
	})

})
