// Package telemetry provides OpenTelemetry tracing for ledger operations
// and storage calls.
//
// Without InitProvider every helper is a no-op, so callers can trace
// unconditionally:
//
//	ctx, span := telemetry.GetTracer().StartOperationSpan(ctx, "add_task", account)
//	defer telemetry.GetTracer().EndOperationSpan(span, code, err)
package telemetry
