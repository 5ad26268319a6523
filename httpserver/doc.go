/*
Package httpserver runs the marketplace file API.

The server mounts the file routes from api/files under /files behind the
request logging middleware and a CORS layer, and adds the operational
endpoints shared by every service:

  - GET /livez   - liveness probe, always 200
  - GET /readyz  - readiness probe, 503 while draining
  - GET /drain   - mark the server not ready
  - GET /undrain - mark the server ready again
  - /debug/*     - pprof, only when EnablePprof is set

Prometheus metrics are served by a separate listener (see package metrics)
started alongside the API when a metrics address is configured.

# Lifecycle

	srv, err := httpserver.New(cfg, filesHandler, metricsSrv)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	<-exit
	srv.Shutdown()

Shutdown waits up to GracefulShutdownDuration for in-flight requests on each
listener.
*/
package httpserver
