// Package logging provides zap-based structured logging for chatmatch.
//
// Logger wraps zap with context-aware methods. Every entry picks up the
// correlation fields carried by the context: OpenTelemetry trace and span
// ids, the request id set by the HTTP layer, and the conversation locale.
//
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithLocale(ctx, "tr")
//	logger.Info(ctx, "learned response created", zap.Float64("confidence", 0.5))
//
// Output goes to stdout (JSON or console), to an OpenTelemetry log provider
// through the otelzap bridge, or both. Levels below error are sampled per
// tick; errors are never dropped.
//
// Tests use NewTestLogger, which records entries in memory for assertions.
package logging
