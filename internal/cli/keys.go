package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/encryption"
	"github.com/GriffinCanCode/tracex/internal/shared/id"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// ErrKeyFileExists is returned by keygen when it would overwrite a key file
var ErrKeyFileExists = errors.New("key file already exists")

type keygenResult struct {
	Path          string `json:"path"`
	FacilitatorID string `json:"facilitatorId"`
	PublicKey     string `json:"publicKey"`
}

func newKeygenCmd(s *state) *cobra.Command {
	var (
		out   string
		bits  int
		force bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a facilitator RSA key pair",
		Long: `Generate an RSA key pair and write it as a 0600 JSON key file.

The facilitator ID derived from the public key is printed so it can be
shared with the collector operator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = s.cfg.Encryption.KeysPath
			}
			if bits == 0 {
				bits = s.cfg.Encryption.KeyBits
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%w: %s (use --force to replace it)", ErrKeyFileExists, out)
			}

			pair, err := encryption.NewStandardProvider().GenerateKeyPair(bits)
			if err != nil {
				return err
			}
			if err := encryption.NewFileKeyStore(out).Save(cmd.Context(), pair); err != nil {
				return err
			}

			return s.print(cmd.OutOrStdout(), keygenResult{
				Path:          out,
				FacilitatorID: id.FacilitatorFromKey(pair.PublicKey),
				PublicKey:     pair.PublicKey,
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Key file path (default from TRACEX_KEYS_PATH)")
	cmd.Flags().IntVar(&bits, "bits", 0, "RSA modulus size (default from TRACEX_KEY_BITS)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key file")
	return cmd
}

func newDecryptCmd(s *state) *cobra.Command {
	var keysPath string

	cmd := &cobra.Command{
		Use:   "decrypt [file]",
		Short: "Decrypt trace envelopes with a key file",
		Long: `Decrypt one envelope or a JSON array of envelopes and print the
plaintext traces. Reads stdin when no file is given or the file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keysPath == "" {
				keysPath = s.cfg.Encryption.KeysPath
			}
			pair, err := encryption.NewFileKeyStore(keysPath).Load(cmd.Context())
			if err != nil {
				return err
			}

			data, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			envelopes, err := parseEnvelopes(data)
			if err != nil {
				return err
			}

			pipeline := encryption.NewPipeline(nil)
			traces := make([]*types.Trace, 0, len(envelopes))
			for i, env := range envelopes {
				trace, err := pipeline.Decrypt(env, pair.PrivateKey)
				if err != nil {
					return fmt.Errorf("envelope %d (%s): %w", i, env.TraceID, err)
				}
				traces = append(traces, trace)
			}
			return s.print(cmd.OutOrStdout(), traces)
		},
	}

	cmd.Flags().StringVar(&keysPath, "keys", "", "Key file holding the private key (default from TRACEX_KEYS_PATH)")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}

// parseEnvelopes accepts a single envelope object or an array of them
func parseEnvelopes(data []byte) ([]*types.EncryptedTrace, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no envelope input")
	}

	var envelopes []*types.EncryptedTrace
	if data[0] == '[' {
		if err := sonic.ConfigStd.Unmarshal(data, &envelopes); err != nil {
			return nil, fmt.Errorf("parse envelopes: %w", err)
		}
	} else {
		var env types.EncryptedTrace
		if err := sonic.ConfigStd.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parse envelope: %w", err)
		}
		envelopes = append(envelopes, &env)
	}

	for i, env := range envelopes {
		if env == nil || env.EncryptedData == "" {
			return nil, fmt.Errorf("envelope %d has no encryptedData", i)
		}
	}
	return envelopes, nil
}
