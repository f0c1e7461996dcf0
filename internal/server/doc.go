// Package server exposes the species pipeline over HTTP.
//
// Routes:
//
//	GET /healthz                           liveness probe
//	GET /metrics                           Prometheus metrics
//	GET /api/v1/species                    run a query given as transfer-form parameters
//	GET /api/v1/locations                  list named locations of the config file
//	GET /api/v1/locations/:name/species    run the query of a named location
//	GET /api/v1/history/:location          run history of a location
//
// Every species request runs the pipeline once; results are not cached.
package server
