// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package messymoby

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// RemoveDeadTestContainers forcefully removes exited as well as created, but
// never started containers carrying the specified label. An empty label name
// removes nothing.
func RemoveDeadTestContainers(ctx context.Context, cln client.APIClient, labelname string) error {
	if labelname == "" {
		return nil
	}
	for _, status := range []string{"exited", "created"} {
		deads, err := cln.ContainerList(ctx, types.ContainerListOptions{
			All: true,
			Filters: filters.NewArgs(
				filters.Arg("status", status),
				filters.Arg("label", labelname)),
		})
		if err != nil {
			return err
		}
		for _, dead := range deads {
			_ = cln.ContainerRemove(ctx, dead.ID, types.ContainerRemoveOptions{Force: true})
		}
	}
	return nil
}
