package cli

import (
	"context"
	"dcsingest/internal/daemon"
	"dcsingest/internal/global"
	"dcsingest/internal/lifecycle"
	"dcsingest/internal/logctx"
	"flag"
	"fmt"
	"os"
)

func RunMode(ctx context.Context, cmdOpts *global.CommandSet, commandname string, args []string) {
	var configPath string
	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	SetCommon(commandFlags, &configPath)

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cmdOpts)
	}
	commandFlags.Parse(args)
	logctx.SetLogLevel(ctx, global.Verbosity)

	jsonCfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	daemonConfig, err := daemon.NewDaemonConf(jsonCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ingest := daemon.NewDaemon(daemonConfig)
	err = ingest.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting ingest daemon: %v\n", err)
		os.Exit(1)
	}

	signalCtx, stopSignals := context.WithCancel(ctx)
	defer stopSignals()
	go lifecycle.SignalHandler(signalCtx, ingest)

	err = lifecycle.NotifyReady(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify ready failed: %v\n", err)
	}

	// Returns on shutdown signal or once every source finished
	err = ingest.Run()
	ingest.Shutdown()
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Ingest stopped: %v\n", err)
	}
}
