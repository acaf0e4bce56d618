// Package services is the business layer between the HTTP handlers and CLI
// commands on one side and the analytics packages and market data source on
// the other.
//
// # Architecture
//
// AnalyticsService runs every futures operation the same way:
//
//	1. validate the request DTO (struct tags, see middleware.ValidationMiddleware)
//	2. fill defaults from config.AnalyticsConfig
//	3. fetch whatever the request did not supply inline from the MarketData source
//	4. run the pure computation (rollspec, continuous, constmaturity, bars, options, skew)
//	5. record a span, the operation metrics and a log line
//
// Errors leave the service as *errors.AppError (or *errors.APIError for
// validation failures) so that errors.ErrorHandler can map them onto RFC 7807
// problems without inspecting messages.
//
// # Testing
//
// The market data source is an interface and is mocked with testify:
//
//	source := new(MockMarketData)
//	source.On("Definitions", mock.Anything, []string{"SR3.FUT"}, "parent", start, end).Return(defs, nil)
//	svc := NewAnalyticsService(source, validator, nil, config.Default().Analytics, logger)
package services
