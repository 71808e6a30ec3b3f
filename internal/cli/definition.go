package cli

import "dcsingest/internal/global"

func DefineOptions() (cmdOpts *global.CommandSet) {
	// Root level
	root := &global.CommandSet{
		Description:     "Telemetry Message Ingest (dcsingest)",
		FullDescription: "  Frames DCP/telemetry byte streams into timestamped, platform tagged messages",
		CommandName:     RootCLICommand,
		ChildCommands:   make(map[string]*global.CommandSet),
	}

	// Daemon
	root.ChildCommands["run"] = &global.CommandSet{
		CommandName:     "run",
		Description:     "Run Ingest Daemon",
		FullDescription: "Reads every configured source, frames messages and delivers them to configured outputs",
		ChildCommands:   nil,
	}

	// Offline framing
	root.ChildCommands["frame"] = &global.CommandSet{
		CommandName:     "frame",
		UsageOption:     "<file|->",
		Description:     "Frame A File",
		FullDescription: "Frames a captured stream with one message format and prints every message found",
		ChildCommands:   nil,
	}

	// Registry listing
	root.ChildCommands["formats"] = &global.CommandSet{
		CommandName:     "formats",
		Description:     "List Message Formats",
		FullDescription: "Lists every header format name accepted in source configuration",
	}

	// Version Info
	root.ChildCommands["version"] = &global.CommandSet{
		CommandName:     "version",
		Description:     "Show Version Information",
		FullDescription: "Display meta information about program",
	}

	cmdOpts = root
	return
}
