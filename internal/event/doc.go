/*
Package event provides a pub/sub event system for agentcmd.

Components publish events when commands run, files change, the workspace
branch moves, or the agent asks to shut down. Front-ends subscribe to react:
the HTTP server streams events to clients, and every long-running front-end
stops when it sees agent.shutdown.

# Event Types

  - command.started: a command invocation began
  - command.finished: a command invocation returned (with error text, if any)
  - file.edited: a file command wrote, appended to, or deleted a file
  - vcs.branch.updated: the workspace git branch changed
  - agent.shutdown: the shutdown command was invoked

# Delivery

Subscribers registered with Subscribe or SubscribeAll are called directly,
so Data keeps its Go type. Publish calls each one in its own goroutine.
PublishSync calls them in registration order before returning.

Every event is also encoded as JSON and published on a watermill gochannel.
Stream exposes that feed for consumers that only need the wire form.

# Usage

	bus := event.NewBus()
	unsub := bus.Subscribe(event.AgentShutdown, func(e event.Event) {
		cancel()
	})
	defer unsub()

	bus.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path, Operation: "write"},
	})
*/
package event
