package cli

import (
	"context"
	"dcsingest/internal/daemon"
	"dcsingest/internal/framer"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/output"
	"dcsingest/internal/resolver"
	"dcsingest/internal/source"
	"dcsingest/pkg/header"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

type frameOptions struct {
	format        string
	start         string
	end           string
	adjust        int
	parity        string
	whole         bool
	maxLength     int
	platformsFile string
	allowUnknown  bool
	legacyRanges  bool
	raw           bool
}

func FrameMode(ctx context.Context, cmdOpts *global.CommandSet, commandname string, args []string) {
	var opts frameOptions
	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	commandFlags.StringVar(&opts.format, "f", "", "Message format name (see formats command)")
	commandFlags.StringVar(&opts.format, "format", "", "Message format name (see formats command)")
	commandFlags.StringVar(&opts.start, "start", "", "Start delimiter (escaped ASCII like \\x02)")
	commandFlags.StringVar(&opts.end, "end", "", "End delimiter (escaped ASCII like \\r\\n)")
	commandFlags.IntVar(&opts.adjust, "adjust", 0, "Added to every header length")
	commandFlags.StringVar(&opts.parity, "parity", "none", "Parity handling: none, odd, even or strip")
	commandFlags.BoolVar(&opts.whole, "whole", false, "Treat the whole input as one message")
	commandFlags.IntVar(&opts.maxLength, "max", 0, "Maximum message length")
	commandFlags.StringVar(&opts.platformsFile, "p", "", "Platforms JSON file used to resolve transport media")
	commandFlags.StringVar(&opts.platformsFile, "platforms", "", "Platforms JSON file used to resolve transport media")
	commandFlags.BoolVar(&opts.allowUnknown, "allow-unknown", false, "Print messages without a matching platform")
	commandFlags.BoolVar(&opts.legacyRanges, "legacy-channels", false, "Match GOES channels by legacy self-timed/random ranges")
	commandFlags.BoolVar(&opts.raw, "raw", false, "Write raw message bytes even when output is a terminal")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cmdOpts)
	}
	commandFlags.Parse(args)
	logctx.SetLogLevel(ctx, global.Verbosity)

	if commandFlags.NArg() != 1 || opts.format == "" {
		PrintHelpMenu(commandFlags, commandname, cmdOpts)
		os.Exit(1)
	}

	var src source.ByteSource
	path := commandFlags.Arg(0)
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading standard input: %v\n", err)
			os.Exit(1)
		}
		src = source.NewBytes("stdin", data)
	} else {
		src = source.NewFile(path, false)
	}

	// Hex dump for people, raw bytes for pipes
	hexDump := term.IsTerminal(int(os.Stdout.Fd())) && !opts.raw

	count, err := frameStream(ctx, src, opts, os.Stdout, hexDump)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Framed %d messages\n", count)
}

// Frames src to the end and writes each message to out
func frameStream(ctx context.Context, src source.ByteSource, opts frameOptions, out io.Writer, hexDump bool) (count int, err error) {
	parser, err := header.Default().New(opts.format)
	if err != nil {
		return
	}

	cfg := framer.Config{
		LengthAdjust:         opts.adjust,
		OneMessagePerSource:  opts.whole,
		MaxMessageLength:     opts.maxLength,
		AllowUnknownPlatform: opts.allowUnknown,
	}
	cfg.StartDelimiter, err = daemon.ParseDelimiter(opts.start)
	if err != nil {
		return
	}
	cfg.EndDelimiter, err = daemon.ParseDelimiter(opts.end)
	if err != nil {
		return
	}
	cfg.Parity, err = framer.ParseParity(opts.parity)
	if err != nil {
		return
	}

	framerOpts := []framer.Option{framer.WithName(source.NameOf(src))}
	if opts.platformsFile != "" {
		var lookup *resolver.FileLookup
		lookup, err = resolver.LoadFileLookup(opts.platformsFile)
		if err != nil {
			return
		}
		framerOpts = append(framerOpts, framer.WithResolver(resolver.New(lookup, opts.legacyRanges)))
	}

	streamFramer, err := framer.New(src, parser, cfg, framerOpts...)
	if err != nil {
		return
	}

	err = src.Open(ctx)
	if err != nil {
		return
	}
	defer src.Close()

	for {
		msg, nextErr := streamFramer.Next(ctx)
		switch {
		case nextErr == nil && msg == nil:
			continue
		case errors.Is(nextErr, source.ErrEndOfSource):
			return
		case source.IsUnknownPlatform(nextErr):
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "skipped message: %v\n", nextErr)
			continue
		case nextErr != nil:
			err = nextErr
			return
		}

		if hexDump {
			fmt.Fprintln(out, output.FormatText(msg))
			fmt.Fprint(out, hex.Dump(msg.Data()))
		} else {
			out.Write(msg.Data())
			out.Write([]byte{'\n'})
		}
		count++
	}
}
