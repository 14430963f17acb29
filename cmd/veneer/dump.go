package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"veneer/internal/document"
	"veneer/internal/template"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print the HTML a template compiles to and its source map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runDump(args[0], string(data), cmd.OutOrStdout())
	},
	SilenceUsage: true,
}

var headingColor = color.New(color.Bold, color.Underline)

const excerptLen = 24

func runDump(path, text string, w io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	doc := document.New(document.FileNameToURI(abs), document.Template, 0, text)
	res := template.Compile(doc)

	headingColor.Fprintln(w, "generated")
	fmt.Fprintln(w, res.Generated.Text)

	headingColor.Fprintln(w, "segments")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "source\tgenerated\ttext")
	for _, seg := range res.Map.Segments() {
		fmt.Fprintf(tw, "%d-%d\t%d-%d\t%s\n",
			seg.SourceStart, seg.SourceEnd,
			seg.GeneratedStart, seg.GeneratedEnd,
			excerpt(text[seg.SourceStart:seg.SourceEnd]))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Directives) > 0 {
		headingColor.Fprintln(w, "directives")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, d := range res.Directives {
			r := doc.RangeAt(d.Start, d.End)
			fmt.Fprintf(tw, "%s\t%d:%d-%d:%d\n", d.Name,
				r.Start.Line+1, r.Start.Character+1, r.End.Line+1, r.End.Character+1)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(res.EmptyLineEnds) > 0 {
		headingColor.Fprintln(w, "empty lines")
		lines := make([]string, len(res.EmptyLineEnds))
		for i, end := range res.EmptyLineEnds {
			lines[i] = fmt.Sprint(doc.PositionAt(end).Line + 1)
		}
		fmt.Fprintln(w, strings.Join(lines, " "))
	}
	return nil
}

func excerpt(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	if r := []rune(s); len(r) > excerptLen {
		return string(r[:excerptLen]) + "..."
	}
	return s
}
