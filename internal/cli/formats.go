package cli

import (
	"dcsingest/pkg/header"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

func FormatsMode() {
	writeFormats(os.Stdout, header.Default())
}

func writeFormats(out io.Writer, registry *header.Registry) {
	table := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "FORMAT\tMEDIUM\tHEADER\tLENGTH FIELD")
	for _, name := range registry.Names() {
		parser, err := registry.New(name)
		if err != nil {
			continue
		}

		headerLength := "variable"
		if parser.HeaderLength() != header.VariableLength {
			headerLength = strconv.Itoa(parser.HeaderLength())
		}
		lengthField := "no"
		if parser.HasExplicitLength() {
			lengthField = "yes"
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", name, parser.MediumType(), headerLength, lengthField)
	}
	table.Flush()
}
