// Command tracexctl manages TraceX keys, decrypts captured envelopes and
// runs local collectors and workloads.
package main

import (
	"os"

	"github.com/GriffinCanCode/tracex/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
