// Package cli contains the tracexctl commands.
package cli

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/transport"
)

// state is shared by every command of one invocation
type state struct {
	cfg     *config.Config
	format  string
	verbose bool
}

// NewRootCmd builds the tracexctl command tree
func NewRootCmd() *cobra.Command {
	s := &state{}

	root := &cobra.Command{
		Use:   "tracexctl",
		Short: "TraceX CLI - telemetry pipeline tooling",
		Long: `tracexctl manages TraceX keys, inspects encrypted traces and runs
a local development collector.

Examples:
  # Create a facilitator key pair
  tracexctl keygen --out .tracex-keys.json

  # Decrypt envelopes captured from the wire
  tracexctl decrypt --keys .tracex-keys.json envelopes.json

  # Run a collector and push a simulated workload at it
  tracexctl serve --port 3002
  TRACEX_API_URL=http://localhost:3002/api/traces tracexctl demo --payments 200
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if s.verbose {
				cfg.Logging.Level = "debug"
				cfg.Logging.Development = true
			}
			s.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&s.format, "output", "o", "json", "Output format (json, yaml)")
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newKeygenCmd(s),
		newDecryptCmd(s),
		newDemoCmd(s),
		newServeCmd(s),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tracexctl version %s\n", transport.Version)
		},
	}
}

// print writes v in the selected format
func (s *state) print(w io.Writer, v any) error {
	switch s.format {
	case "yaml":
		// round-trip through JSON so custom marshalers shape the output
		data, err := sonic.ConfigStd.Marshal(v)
		if err != nil {
			return err
		}
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "json", "":
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("unknown output format %q", s.format)
	}
}
