// Package server provides HTTP server setup for the development collector.
//
// Server Lifecycle:
//  1. Load configuration from environment or file
//  2. Initialize logger (production or development)
//  3. Load facilitator keys when a key file is configured
//  4. Setup middleware (recovery, metrics, CORS, rate limiting, gzip)
//  5. Register collector routes and /metrics
//  6. Start HTTP server
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
