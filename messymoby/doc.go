/*
Package messymoby manages the Docker test harness of hostprobe: bringing it up
and down using "docker compose", as well as cleaning up the mess of dead test
containers and duplicate test networks that aborted test runs leave behind.

This package is intended for use in tests only.
*/
package messymoby
