// Package shutdown orders the teardown of a running todokit process.
//
// Steps register under a Phase. Lower phases run first, and steps sharing a
// phase run concurrently:
//
//   - PhaseTransport (10): stop the HTTP host or stdio loop
//   - PhaseEvents (20): close the event bus
//   - PhaseStore (30): close the state store
//
// Offsets such as PhaseStore+1 slot extra steps between them.
//
//	coord := shutdown.NewCoordinator(shutdown.Config{Logger: logger})
//	coord.Add("http", shutdown.PhaseTransport, srv.Shutdown)
//	coord.AddCloser("events", shutdown.PhaseEvents, eventBus)
//	coord.AddCloser("store", shutdown.PhaseStore, store)
//	coord.HandleSignals()
//
//	<-coord.Done()
//
// A failing step does not stop later phases unless StopOnError is set; the
// report's error is then ErrStepFailed. A deadline reached between phases
// skips the remaining ones with ErrTimeout.
package shutdown
