/*
Package mobynet discovers the host names reachable from a particular Docker
container: the names and aliases of the other containers attached to the same
Docker networks.

[DiscoverAttachedNames] returns these names grouped by Docker network, together
with the network namespace path of the container, so that hosts can be probed
from inside the container's point of view. [AllFQDNsOnAttachedNetworks] then
flattens the names into a host list.
*/
package mobynet
