// Package fileops implements the file_operations command category.
//
// Every path argument is resolved through the invocation's workspace.
// Writes, appends and deletes are recorded in an OpLog so an agent that
// repeats itself gets told instead of silently redoing the work.
package fileops

import (
	"net/http"
	"time"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/event"
)

// DownloadDisabledReason is reported when ALLOW_DOWNLOADS is off.
const DownloadDisabledReason = "Error: You do not have user authorization to download files locally."

// Options wires the collaborators file commands share.
type Options struct {
	// Log records file mutations; required.
	Log *OpLog
	// Memory receives ingest_file chunks. ingest_file is disabled without it.
	Memory Memory
	// AllowDownloads enables download_file.
	AllowDownloads bool
	// Client performs downloads; defaults to a client with a 5 minute timeout.
	Client *http.Client
	// Bus receives file.edited events; defaults to event.Default().
	Bus *event.Bus
}

type ops struct {
	log    *OpLog
	memory Memory
	client *http.Client
	bus    *event.Bus
}

// Register adds every file command to reg.
func Register(reg *command.Registry, opts Options) {
	o := &ops{
		log:    opts.Log,
		memory: opts.Memory,
		client: opts.Client,
		bus:    opts.Bus,
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 5 * time.Minute}
	}
	if o.bus == nil {
		o.bus = event.Default()
	}

	reg.Register(o.readFile(), command.Always)
	reg.Register(o.writeToFile(), command.Always)
	reg.Register(o.appendToFile(), command.Always)
	reg.Register(o.deleteFile(), command.Always)
	reg.Register(o.listFiles(), command.Always)
	reg.Register(o.downloadFile(), command.Require(opts.AllowDownloads, DownloadDisabledReason))
	reg.Register(o.createDirectory(), command.Always)
	reg.Register(o.renameDirectory(), command.Always)
	reg.Register(o.deleteDirectory(), command.Always)
	reg.Register(o.copyFile(), command.Always)
	reg.Register(o.renameFile(), command.Always)
	reg.Register(o.getFileInfo(), command.Always)
	reg.Register(o.changePermissions(), command.Always)
	reg.Register(o.changeOwnerGroup(), command.Always)
	reg.Register(o.getFileSize(), command.Always)
	reg.Register(o.compressFiles(), command.Always)
	reg.Register(o.uncompressArchive(), command.Always)
	reg.Register(o.ingestFile(), command.Require(opts.Memory != nil, "no memory backend configured"))
}

func (o *ops) edited(path string, op Operation) {
	o.bus.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path, Operation: string(op)},
	})
}
