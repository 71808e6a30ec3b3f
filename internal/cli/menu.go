package cli

import (
	"dcsingest/internal/global"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

const (
	RootCLICommand  string = "root"
	helpMenuTrailer string = `
Verbosity levels: 0 quiet, 1 standard, 2 progress, 3 data, 4 full data, 5 debug
Signals: SIGHUP reloads the platforms file, SIGINT/SIGTERM drain queued messages and exit
`
)

// Full standardized help menu (wraps option printer as well)
func PrintHelpMenu(fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	writeHelpMenu(os.Stdout, fs, command, rootCmd)
}

func writeHelpMenu(out io.Writer, fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	const baseIndentSpaces = 2

	// Find the command in tree
	curCmdSet, parentStack := rootCmd, []*global.CommandSet{}
	if command != "" && command != RootCLICommand {
		var found bool
		curCmdSet, parentStack, found = findCommand(rootCmd, command, nil)
		if !found {
			fmt.Fprintf(out, "Unknown command: %s\n", command)
			return
		}
	}

	// Build full usage path
	usageParts := []string{global.ProgBaseName}
	// Append parent commands
	for _, p := range parentStack {
		usageParts = append(usageParts, p.CommandName)
	}
	usageParts = append(usageParts, curCmdSet.CommandName)

	// Don't actually include the root name
	if len(usageParts) > 1 && usageParts[1] == RootCLICommand {
		usageParts = append(usageParts[:1], usageParts[2:]...)
	}

	// Add child commands or usage options
	if len(curCmdSet.ChildCommands) > 1 {
		usageParts = append(usageParts, "[subcommand]")
	} else if len(curCmdSet.ChildCommands) == 1 {
		for name := range curCmdSet.ChildCommands {
			usageParts = append(usageParts, name)
		}
	}
	if curCmdSet.UsageOption != "" {
		usageParts = append(usageParts, curCmdSet.UsageOption)
	}

	fmt.Fprintf(out, "Usage: %s\n\n", strings.Join(usageParts, " "))

	// Description
	if curCmdSet == rootCmd {
		fmt.Fprintln(out, curCmdSet.Description)
		fmt.Fprintln(out, curCmdSet.FullDescription)
		fmt.Fprintln(out)
	} else if curCmdSet.FullDescription != "" {
		fmt.Fprintln(out, "  Description:")
		fmt.Fprintf(out, "    %s\n\n", curCmdSet.FullDescription)
	}

	// Subcommands
	if len(curCmdSet.ChildCommands) > 0 {
		indent := strings.Repeat(" ", baseIndentSpaces)
		fmt.Fprintf(out, "%sSubcommands:\n", indent)

		// Compute max length for padding
		maxLen := 0
		for name := range curCmdSet.ChildCommands {
			if len(name) > maxLen {
				maxLen = len(name)
			}
		}

		// Sort subcommand names
		subNames := make([]string, 0, len(curCmdSet.ChildCommands))
		for name := range curCmdSet.ChildCommands {
			subNames = append(subNames, name)
		}
		sort.Strings(subNames)

		cmdIndent := strings.Repeat(" ", baseIndentSpaces+2)
		for _, name := range subNames {
			sub := curCmdSet.ChildCommands[name]
			padding := strings.Repeat(" ", maxLen-len(name)+2)
			fmt.Fprintf(out, "%s%s%s - %s\n", cmdIndent, name, padding, sub.Description)
		}
		fmt.Fprintln(out)
	}

	// Flag
	printFlagOptions(out, fs, baseIndentSpaces)

	// Top-level trailer
	if curCmdSet == rootCmd {
		fmt.Fprint(out, helpMenuTrailer)
	}
}

// Prints options with short and long aliases of the same usage joined on one line
func printFlagOptions(out io.Writer, fs *flag.FlagSet, baseIndentSpaces int) {
	type option struct {
		short      []string
		long       []string
		usage      string
		defaultVal string
	}

	byUsage := make(map[string]*option)
	fs.VisitAll(func(arg *flag.Flag) {
		opt, ok := byUsage[arg.Usage]
		if !ok {
			opt = &option{usage: arg.Usage, defaultVal: arg.DefValue}
			byUsage[arg.Usage] = opt
		}
		if len(arg.Name) == 1 {
			opt.short = append(opt.short, "-"+arg.Name)
		} else {
			opt.long = append(opt.long, "--"+arg.Name)
		}
	})

	rows := make([][2]string, 0, len(byUsage))
	for _, opt := range byUsage {
		// Long-only options line up under the long column
		names := "    " + strings.Join(opt.long, ", ")
		if len(opt.short) > 0 {
			names = strings.Join(append(opt.short, opt.long...), ", ")
		}

		desc := opt.usage
		switch opt.defaultVal {
		case "", "false", "0":
		default:
			desc += fmt.Sprintf(" [default: %s]", opt.defaultVal)
		}
		rows = append(rows, [2]string{names, desc})
	}
	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(strings.TrimSpace(rows[i][0])) < strings.ToLower(strings.TrimSpace(rows[j][0]))
	})

	indent := strings.Repeat(" ", baseIndentSpaces)
	fmt.Fprintf(out, "%sOptions:\n", indent)
	table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(table, "%s%s\t%s\n", indent, row[0], row[1])
	}
	table.Flush()
}

// Depth first search for a command name below cmd, returning the path of parents to it
func findCommand(cmd *global.CommandSet, name string, parents []*global.CommandSet) (found *global.CommandSet, stack []*global.CommandSet, ok bool) {
	names := make([]string, 0, len(cmd.ChildCommands))
	for childName := range cmd.ChildCommands {
		names = append(names, childName)
	}
	sort.Strings(names)

	parents = append(parents, cmd)
	for _, childName := range names {
		child := cmd.ChildCommands[childName]
		if childName == name {
			found, stack, ok = child, parents, true
			return
		}
		found, stack, ok = findCommand(child, name, parents)
		if ok {
			return
		}
	}
	return
}
