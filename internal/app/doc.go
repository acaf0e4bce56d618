// Package app wires the analytics server together: configuration, logging,
// telemetry, the Databento client, services, middleware and routes.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, the YAML file and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Create the Databento client when an API key is available
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Configure the HTTP server
//
// Without an API key the server still starts; requests that carry their
// own definitions, segments or prices succeed and the rest answer 503.
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM: active requests are completed and
// telemetry is flushed before it returns. The package never calls os.Exit.
package app
