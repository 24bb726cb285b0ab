// Package broadcast pushes records to websocket clients as they flow
// through a pipeline.
//
// A Hub tracks connected clients and fans messages out to them. Clients
// connect through Hub.Handler and choose which topics they hear with a
// glob in the "topic" query parameter ("*" by default). The Broadcast
// stage publishes every record, encoded as JSON, on one topic:
//
//	hub := broadcast.NewHub(log)
//	go hub.Run()
//	defer hub.Stop()
//	http.Handle("/ws", hub.Handler())
//
//	p = broadcast.Broadcast(p, hub, "gps")
//
// A client that cannot keep up has messages dropped rather than slowing
// the pipeline down.
package broadcast
