package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracex/pkg/tracex"
)

var errDeclined = errors.New("card declined")

// demoSteps is one simulated payment, in order
var demoSteps = []string{"payment.verify", "payment.authorize", "payment.settle"}

type demoResult struct {
	Payments     int   `json:"payments"`
	Spans        int64 `json:"spans"`
	Declined     int64 `json:"declined"`
	Delivered    bool  `json:"delivered"`
	FailedChunks int64 `json:"failedChunks"`
}

func newDemoCmd(s *state) *cobra.Command {
	var (
		payments    int
		workers     int
		failureRate float64
		maxLatency  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Send a simulated payment workload",
		Long: `Run simulated payments through a tracer configured from the
environment. Each payment records verify, authorize and settle spans; a
declined payment stops at authorize with an error span.

Without TRACEX_API_URL the spans are recorded and discarded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 || payments < 0 {
				return fmt.Errorf("workers must be positive and payments non-negative")
			}
			logger := logging.FromSettings(s.cfg.Logging.Level, s.cfg.Logging.Development)
			defer logger.Sync()

			var spans, declined, failedChunks atomic.Int64
			client, err := tracex.New(s.cfg,
				tracex.WithLogger(logger.Logger),
				tracex.OnChunkFailure(func(tracex.ChunkFailure) { failedChunks.Add(1) }),
			)
			if err != nil {
				return err
			}
			client.AddMetadata("workload", tracex.String("demo"))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(workers)
			for i := 0; i < payments; i++ {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					n, err := simulatePayment(client, i, failureRate, maxLatency)
					spans.Add(int64(n))
					if errors.Is(err, errDeclined) {
						declined.Add(1)
					}
					return nil
				})
			}
			waitErr := g.Wait()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 30*time.Second)
			defer cancel()
			if err := client.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Shutdown incomplete", zap.Error(err))
			}
			if waitErr != nil {
				return waitErr
			}

			return s.print(cmd.OutOrStdout(), demoResult{
				Payments:     payments,
				Spans:        spans.Load(),
				Declined:     declined.Load(),
				Delivered:    s.cfg.API.URL != "" && failedChunks.Load() == 0,
				FailedChunks: failedChunks.Load(),
			})
		},
	}

	cmd.Flags().IntVar(&payments, "payments", 50, "Number of simulated payments")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent payments")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0.1, "Probability a payment is declined")
	cmd.Flags().DurationVar(&maxLatency, "max-latency", 20*time.Millisecond, "Upper bound on simulated step latency")
	return cmd
}

// simulatePayment records one span per completed step and returns how many
// spans it recorded
func simulatePayment(client *tracex.Client, n int, failureRate float64, maxLatency time.Duration) (int, error) {
	decline := rand.Float64() < failureRate
	recorded := 0

	for _, step := range demoSteps {
		span := client.StartSpan(step)
		span.AddAttribute("payment.id", tracex.Int(n))
		span.AddAttribute("amount", tracex.Float(float64(rand.IntN(50000))/100))
		if maxLatency > 0 {
			time.Sleep(rand.N(maxLatency))
		}
		recorded++

		if decline && step == "payment.authorize" {
			span.Fail(errDeclined)
			return recorded, errDeclined
		}
		span.Success()
	}
	return recorded, nil
}
