// Package observability provides OpenTelemetry tracing and metrics for the
// API client.
//
// Exporters:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("apictl"), log)
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("apictl"), log)
//	defer mp.Shutdown(ctx)
//
// Instruments used by the request pipeline and the refresh coordinator:
//
//	inst, err := observability.NewInstruments(mp, tp)
//	ctx, span := inst.StartCall(ctx, "GET", "/users", requestID)
//	inst.EndCall(ctx, span, "GET", err, time.Since(start))
//
// Health:
//
//	report := observability.NewServiceHealth("apictl", version)
//	report.AddComponent(store.CheckHealth(ctx))
package observability
