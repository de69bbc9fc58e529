// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package test

// ComposeFile is the harness compose file, relative to the package directories
// running the harness tests.
const ComposeFile = "../test/docker-compose.yaml"

// CenterContainer is the name of the harness container hosts get probed from.
const CenterContainer = "test-test-1"

// DcTestUpArgs specifies docker compose CLI args for setting up the test
// harness.
var DcTestUpArgs = []string{
	"-f", ComposeFile,
	"up",
	"-d",
	"--scale", "foo=2",
}

// DcTestDnArgs specifies docker compose CLI args for tearing down the test
// harness.
var DcTestDnArgs = []string{
	"-f", ComposeFile,
	"down",
	"-t", "1",
}
