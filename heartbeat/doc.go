// Package heartbeat announces that a service instance is alive.
//
// Each running todo-server publishes a small JSON report on the event bus
// at a fixed interval, so operators and load balancers can tell which
// instances are serving, which are draining and which have stopped:
//
//	sender, _ := heartbeat.NewBusSender(heartbeat.SenderConfig{
//	    Bus:           bus,
//	    Instance:      "todo-1",
//	    SubjectPrefix: "todokit",
//	    Interval:      15 * time.Second,
//	    Sessions:      srv.Connections,
//	})
//	sender.Start(ctx)
//	...
//	sender.SetStatus(heartbeat.StatusDraining)
//	sender.Stop()
//
// Heartbeats are published to <prefix>.heartbeat.<instance>; subscribe to
// <prefix>.heartbeat.* to watch every instance.
package heartbeat
