package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"veneer/internal/config"
	"veneer/internal/dispatch"
	"veneer/internal/document"
	"veneer/internal/engine/remote"
	"veneer/internal/scanner"
	"veneer/internal/server"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/errgroup"
)

var checkCmd = &cobra.Command{
	Use:   "check FILES...",
	Short: "Print diagnostics for files and directories",
	Long: `check validates every given file, and every file of a known dialect
under the given directories, and prints the diagnostics. It exits non-zero
when any error was found.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		report, err := runCheck(cmd.Context(), cfg, args, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if report.errors > 0 {
			return fmt.Errorf("%d error(s) in %d file(s)", report.errors, report.failedFiles)
		}
		return nil
	},
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	pathColor    = color.New(color.Bold)
)

type checkReport struct {
	files       int
	failedFiles int
	errors      int
	warnings    int
}

type checked struct {
	path        string
	diagnostics []protocol.Diagnostic
}

// runCheck validates paths and writes one line per diagnostic to w, files
// in the order they were found.
func runCheck(ctx context.Context, cfg config.Config, paths []string, w io.Writer) (checkReport, error) {
	var report checkReport

	for ext, dialect := range cfg.Extensions {
		document.RegisterExtension(ext, document.Dialect(dialect))
	}
	files, err := collect(ctx, paths)
	if err != nil {
		return report, err
	}

	docs := document.NewStore()
	d, err := newCheckDispatcher(cfg, docs)
	if err != nil {
		return report, err
	}
	defer d.Close()

	results := make([]checked, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			doc := docs.Open(protocol.TextDocumentItem{
				URI:     document.FileNameToURI(f.path),
				Version: 1,
				Text:    string(f.data),
			})
			var items []protocol.Diagnostic
			if diags := d.Validate(ctx, doc.URI); diags != nil {
				items = diags.Items
			}
			results[i] = checked{path: f.path, diagnostics: items}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, r := range results {
		report.files++
		failed := false
		for _, diag := range r.diagnostics {
			severity := protocol.DiagnosticSeverityError
			if diag.Severity != nil {
				severity = *diag.Severity
			}
			switch severity {
			case protocol.DiagnosticSeverityError:
				report.errors++
				failed = true
			case protocol.DiagnosticSeverityWarning:
				report.warnings++
			}
			fmt.Fprintln(w, formatDiagnostic(r.path, diag, severity))
		}
		if failed {
			report.failedFiles++
		}
	}
	fmt.Fprintf(w, "%d file(s) checked: %d error(s), %d warning(s)\n", report.files, report.errors, report.warnings)
	return report, nil
}

func formatDiagnostic(path string, diag protocol.Diagnostic, severity protocol.DiagnosticSeverity) string {
	var label string
	switch severity {
	case protocol.DiagnosticSeverityError:
		label = errorColor.Sprint("error")
	case protocol.DiagnosticSeverityWarning:
		label = warningColor.Sprint("warning")
	case protocol.DiagnosticSeverityInformation:
		label = infoColor.Sprint("info")
	default:
		label = infoColor.Sprint("hint")
	}
	line := fmt.Sprintf("%s:%d:%d: %s: %s",
		pathColor.Sprint(path),
		diag.Range.Start.Line+1, diag.Range.Start.Character+1,
		label, diag.Message)
	if diag.Code != nil {
		line += fmt.Sprintf(" [%v]", diag.Code.Value)
	}
	return line
}

type sourceFile struct {
	path string
	data []byte
}

// collect reads the named files and every file of a known dialect below the
// named directories.
func collect(ctx context.Context, paths []string) ([]sourceFile, error) {
	var files []sourceFile
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			files = append(files, sourceFile{path: p, data: data})
			continue
		}

		found := map[string][]byte{}
		var order []string
		skip := func(path string, info fs.FileInfo) bool {
			if document.DialectForExtension(filepath.Ext(path)) == "" {
				return true
			}
			order = append(order, path)
			return false
		}
		results := make(chan sourceFile)
		done := make(chan struct{})
		go func() {
			for f := range results {
				found[f.path] = f.data
			}
			close(done)
		}()
		err = scanner.Scan(ctx, p, skip, func(path string, _ fs.FileInfo, data []byte) error {
			results <- sourceFile{path: path, data: data}
			return nil
		})
		close(results)
		<-done
		if err != nil {
			return nil, err
		}
		for _, path := range order {
			if data, ok := found[path]; ok {
				files = append(files, sourceFile{path: path, data: data})
			}
		}
	}
	return files, nil
}

func newCheckDispatcher(cfg config.Config, docs *document.Store) (*dispatch.Dispatcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	var extra []*dispatch.Variant
	for _, rc := range cfg.Remote {
		e, err := remote.Start(rc, root)
		if err != nil {
			return nil, fmt.Errorf("remote engine for %s: %w", rc.Dialect, err)
		}
		for _, ext := range rc.Extensions {
			document.RegisterExtension(ext, document.Dialect(rc.Dialect))
		}
		extra = append(extra, &dispatch.Variant{Dialect: document.Dialect(rc.Dialect), Engine: e, Family: server.FamilyOf(document.Dialect(rc.Dialect))})
	}
	registry, err := dispatch.NewRegistry(dispatch.Standard(extra...)...)
	if err != nil {
		for _, v := range extra {
			_ = v.Engine.(*remote.Engine).Close()
		}
		return nil, err
	}
	return dispatch.New(registry, docs, config.NewStore(cfg.Settings), dispatch.Options{Root: root}), nil
}
