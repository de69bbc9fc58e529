// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// EmbeddedDNS is the address of Docker's embedded DNS resolver inside
// containers attached to custom networks.
const EmbeddedDNS = "127.0.0.11:53"

// DockerNetwork describes a single Docker network in terms of its name, as well
// as the DNS labels of the attached containers and associated service names.
type DockerNetwork struct {
	Label  string   `json:"label"`  // name of Docker network used as DNS "TLD" label.
	Labels []string `json:"labels"` // container and service/alias names used as DNS labels.
}

// DiscoverAttachedNames takes on the position of the “center” container
// identified by centerID and then inspects the networks attached to this
// container. It then queries the containers attached to these networks for
// their container names and aliases. Additionally, it returns the path to the
// network namespace of the center container.
//
// This works correctly even with multiple Docker networks having the same
// name, yet different IDs: network names are not necessarily unambiguous,
// while container names always are.
func DiscoverAttachedNames(ctx context.Context, moby client.APIClient, centerID string) ([]DockerNetwork, string, error) {
	centerDetails, err := moby.ContainerInspect(ctx, centerID)
	if err != nil {
		return nil, "", fmt.Errorf("cannot inspect container %s: %w", centerID, err)
	}
	if centerDetails.State == nil || centerDetails.State.Pid == 0 {
		return nil, "", fmt.Errorf("container %s is not running", centerID)
	}
	centerName := strings.TrimPrefix(centerDetails.Name, "/") // Docker's "/name" legacy
	netnsref := fmt.Sprintf("/proc/%d/ns/net", centerDetails.State.Pid)

	// Containers attached to multiple networks get inspected only once.
	cntrDetailsCache := map[string]types.ContainerJSON{}
	mobyNetworks := make([]DockerNetwork, 0, len(centerDetails.NetworkSettings.Networks))
	for attachedNetName, attachedNet := range centerDetails.NetworkSettings.Networks {
		attNetDetails, err := moby.NetworkInspect(ctx, attachedNet.NetworkID, types.NetworkInspectOptions{})
		if err != nil {
			return nil, "", fmt.Errorf("cannot inspect network %s: %w", attachedNetName, err)
		}
		if len(attNetDetails.Containers) == 0 {
			continue
		}
		// Service names might refer to multiple containers, so each DNS label
		// must appear only once per network.
		namesOnNetwork := map[string]struct{}{}
		for _, attCntr := range attNetDetails.Containers {
			if attCntr.Name == centerName {
				continue
			}
			// Network inspection doesn't reveal the aliases, so we need the
			// container details, where the link is by name, not ID.
			attCntrDetails, ok := cntrDetailsCache[attCntr.Name]
			if !ok {
				attCntrDetails, err = moby.ContainerInspect(ctx, attCntr.Name)
				if err != nil {
					continue
				}
				cntrDetailsCache[attCntr.Name] = attCntrDetails
			}
			namesOnNetwork[attCntr.Name] = struct{}{}
			if attCntrDetails.NetworkSettings == nil {
				continue
			}
			if endpoint, ok := attCntrDetails.NetworkSettings.Networks[attachedNetName]; ok && endpoint != nil {
				for _, alias := range endpoint.Aliases {
					namesOnNetwork[alias] = struct{}{}
				}
			}
		}
		if len(namesOnNetwork) == 0 {
			continue
		}
		dnsLabels := make([]string, 0, len(namesOnNetwork))
		for alias := range namesOnNetwork {
			dnsLabels = append(dnsLabels, alias)
		}
		sort.Strings(dnsLabels)
		mobyNetworks = append(mobyNetworks, DockerNetwork{
			Label:  attachedNetName,
			Labels: dnsLabels,
		})
	}
	sort.Slice(mobyNetworks, func(a, b int) bool {
		return mobyNetworks[a].Label < mobyNetworks[b].Label
	})
	return mobyNetworks, netnsref, nil
}

// AllFQDNsOnAttachedNetworks returns the host names that should be addressable
// from a particular container, based on the list of attached networks with
// their DNS labels. Each label appears qualified with its network name, as
// well as unqualified, but only once.
func AllFQDNsOnAttachedNetworks(nets []DockerNetwork) []string {
	names := []string{}
	flatnames := map[string]struct{}{}
	for _, net := range nets {
		for _, label := range net.Labels {
			names = append(names, label+"."+net.Label)
			flatnames[label] = struct{}{}
		}
	}
	flat := make([]string, 0, len(flatnames))
	for flatname := range flatnames {
		flat = append(flat, flatname)
	}
	sort.Strings(flat)
	return append(names, flat...)
}

// HostList returns the host names on the networks as a host list with one
// name per line, ready to be fed to a dispatcher.
func HostList(nets []DockerNetwork) string {
	names := AllFQDNsOnAttachedNetworks(nets)
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "\n") + "\n"
}
