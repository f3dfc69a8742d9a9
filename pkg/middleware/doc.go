// Package middleware provides HTTP middleware for the cascade server's web
// surface: Prometheus request metrics and OpenTelemetry tracing.
//
// Both integrate with chi or any net/http mux:
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry())
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
package middleware
