// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package messymoby

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// RemoveDuplicateTestNetworks removes duplicate networks carrying the
// specified label, that is, multiple networks with the same name, yet different
// IDs. Docker's built-in networks are never touched.
func RemoveDuplicateTestNetworks(ctx context.Context, cln client.APIClient, labelname string) error {
	if labelname == "" {
		return nil
	}
	nets, err := cln.NetworkList(ctx, types.NetworkListOptions{})
	if err != nil {
		return err
	}
	byName := map[string][]types.NetworkResource{}
	for _, net := range nets {
		byName[net.Name] = append(byName[net.Name], net)
	}
	for netname, dupes := range byName {
		if len(dupes) == 1 {
			continue
		}
		switch netname {
		case "bridge", "host", "none":
			continue
		}
		for _, net := range dupes {
			if _, ok := net.Labels[labelname]; ok {
				_ = cln.NetworkRemove(ctx, net.ID)
			}
		}
	}
	return nil
}
