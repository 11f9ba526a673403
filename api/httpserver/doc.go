// Package httpserver provides the reusable HTTP server the settlement
// service binaries are built on.
//
// The package implements a base HTTP server with standard health endpoints,
// graceful shutdown, request logging, optional CORS, and a companion metrics
// listener. Components contribute their own endpoints through the
// RouteRegistrar interface, so the compute API and any future surfaces share
// one server lifecycle.
//
// # Key Components
//
//   - BaseServer: Core HTTP server with health checks, metrics, and lifecycle management
//   - RouteRegistrar: Interface for components to register their routes with the server
//
// # Health and Diagnostics
//
// Every server built on BaseServer includes:
//
//   - Liveness Check: Simple endpoint to verify server is running (/livez)
//   - Readiness Check: Endpoint indicating if server is ready to accept requests (/readyz)
//   - Drain Control: Endpoints to prepare for graceful shutdown (/drain, /undrain)
//   - Metrics: Optional Prometheus-compatible metrics listener
//   - Profiling: Optional pprof debugging endpoints when enabled
//
// # Usage Example
//
//	// Implement the RouteRegistrar interface for your handler
//	func (h *MyHandler) RegisterRoutes(r chi.Router) {
//	    r.Post("/compute", h.HandleCompute)
//	}
//
//	srv, err := httpserver.New(cfg, handler)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
