// Command boqparse parses one BOQ file and prints the import report.
//
//	boqparse [-profile f.toml] [-strict=false] [-locale de] [-json]
//	         [-arrow out.arrow] [-errors-xlsx out.xlsx] [-errors-csv out.csv] FILE
//
// The exit status is 1 when the import did not succeed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/boqimport/internal/config"
	"github.com/JonMunkholm/boqimport/internal/core"
	"github.com/JonMunkholm/boqimport/internal/export"
	"github.com/JonMunkholm/boqimport/internal/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	profile   string
	strict    bool
	strictSet bool
	locale    string
	localeSet bool
	asJSON    bool
	arrowPath string
	xlsxPath  string
	csvPath   string
	logLevel  string
	file      string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("boqparse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.profile, "profile", "", "TOML parse profile")
	fs.BoolVar(&o.strict, "strict", true, "drop rows that fail validation")
	fs.StringVar(&o.locale, "locale", "", "numeric convention: standard, european or a language tag")
	fs.BoolVar(&o.asJSON, "json", false, "print the result as JSON instead of the text report")
	fs.StringVar(&o.arrowPath, "arrow", "", "write items as an Arrow IPC stream")
	fs.StringVar(&o.xlsxPath, "errors-xlsx", "", "write the error report workbook")
	fs.StringVar(&o.csvPath, "errors-csv", "", "write the error report as CSV")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strict":
			o.strictSet = true
		case "locale":
			o.localeSet = true
		}
	})
	if fs.NArg() != 1 {
		fs.Usage()
		return o, errors.New("expected exactly one file")
	}
	o.file = fs.Arg(0)
	return o, nil
}

// parseConfig layers the env defaults, the profile and explicit flags.
func (o options) parseConfig() (core.ParseConfig, error) {
	defaults, err := config.Load()
	if err != nil {
		return core.ParseConfig{}, err
	}
	cfg, err := defaults.Parse.ParseConfig()
	if err != nil {
		return core.ParseConfig{}, err
	}

	if o.profile != "" {
		p, err := config.LoadProfile(o.profile)
		if err != nil {
			return core.ParseConfig{}, err
		}
		cfg = p.Apply(cfg)
	}

	var partial core.PartialConfig
	if o.strictSet {
		partial.StrictValidation = &o.strict
	}
	if o.localeSet {
		loc := core.ParseLocale(o.locale)
		partial.Locale = &loc
	}
	return partial.Apply(cfg), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "boqparse:", err)
		return 2
	}

	logger := logging.New(stderr, o.logLevel, "text")
	slog.SetDefault(logger)

	cfg, err := o.parseConfig()
	if err != nil {
		fmt.Fprintln(stderr, "boqparse:", err)
		return 2
	}

	in, err := core.OpenFileInput(o.file)
	if err != nil {
		fmt.Fprintln(stderr, "boqparse:", err)
		return 2
	}

	pipeline := core.NewPipeline(cfg)
	result := pipeline.ParseAuto(core.ContextWithLogger(ctx, logger), in)

	if o.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintln(stderr, "boqparse:", err)
			return 2
		}
	} else {
		fmt.Fprint(stdout, core.TextReport(result))
	}

	if err := writeExports(o, result); err != nil {
		fmt.Fprintln(stderr, "boqparse:", err)
		return 2
	}

	if !result.Success {
		return 1
	}
	return 0
}

func writeExports(o options, result core.ParseResult) error {
	if o.arrowPath != "" {
		if err := writeFile(o.arrowPath, func(w io.Writer) error {
			return export.WriteItemsArrow(w, result, export.DefaultBatchSize)
		}); err != nil {
			return err
		}
	}
	if o.xlsxPath != "" {
		data, err := export.ErrorReportXLSX(result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.xlsxPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", o.xlsxPath, err)
		}
	}
	if o.csvPath != "" {
		if err := writeFile(o.csvPath, func(w io.Writer) error {
			return export.WriteErrorReportCSV(w, result)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
