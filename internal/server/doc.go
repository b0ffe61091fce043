// Package server exposes the command registry over HTTP.
//
// Routes:
//
//	GET  /command          catalog entries as JSON (?category= filters)
//	GET  /command/{name}   one catalog entry
//	POST /command/{name}   invoke with a JSON object of arguments
//	GET  /catalog          rendered listing (?format=markdown|text|json|yaml)
//	GET  /event            server-sent events from the event bus
//	GET  /path             the workspace directory
//
// Invoking shutdown answers the request normally and then signals Done, so
// the caller can stop the server gracefully.
//
//	srv := server.New(server.DefaultConfig(), app.Registry, app.Bus)
//	go srv.Start()
//	<-srv.Done()
//	srv.Shutdown(ctx)
package server
