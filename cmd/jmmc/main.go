// Package main implements the jmmc back end binary.
//
// It reads a typed syntax tree encoded as JSON and writes Jasmin assembly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/compiler"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "compile":
		os.Exit(compile(os.Args[2:]))
	case "version":
		fmt.Printf("jmmc version %s\n", version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`jmmc - Jmm optimizing back end

Usage:
    jmmc compile [options] <unit.json>   Compile a typed unit to Jasmin
    jmmc version                         Show version
    jmmc help                            Show this help message

Options:
    -o             Enable AST optimizations
    -r <n>         Register allocation: -1 off, 0 minimum, n registers for locals
    -target <ver>  Java version for the .bytecode directive (e.g. 8, 17)
    -out <file>    Output file, "-" for stdout (default: <unit>.j)
    -ollir         Also write the OLLIR text next to the output
    -watch         Recompile whenever the input changes
    -d             Debug logging
    -log <file>    Write JSON logs to a file
    -log-level <l> Level for -log: debug, info, warn, error (default: info)

Environment:
    JMMC_OPTIMIZE, JMMC_REGISTER_ALLOCATION, JMMC_TARGET, JMMC_DEBUG`)
}

type options struct {
	cfg      compiler.Config
	input    string
	out      string
	ollir    bool
	watch    bool
	logFile  string
	logLevel logger.LogLevel
}

func parseOptions(args []string) (*options, error) {
	cfg, err := compiler.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	optimize := fs.Bool("o", cfg.Optimize, "enable AST optimizations")
	registers := fs.Int("r", cfg.RegisterAllocation, "register allocation (-1 off, 0 minimum, n fixed)")
	target := fs.String("target", cfg.Target, "Java version for .bytecode")
	debug := fs.Bool("d", cfg.Debug, "debug logging")
	out := fs.String("out", "", "output file")
	ollir := fs.Bool("ollir", false, "write OLLIR text")
	watch := fs.Bool("watch", false, "recompile on change")
	logFile := fs.String("log", "", "JSON log file")
	logLevel := fs.String("log-level", "info", "log file level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one input file")
	}

	cfg.Optimize = *optimize
	cfg.RegisterAllocation = *registers
	cfg.Target = *target
	cfg.Debug = *debug
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return nil, err
	}

	opts := &options{
		cfg:      cfg,
		input:    fs.Arg(0),
		out:      *out,
		ollir:    *ollir,
		watch:    *watch,
		logFile:  *logFile,
		logLevel: level,
	}
	if opts.out == "" {
		opts.out = strings.TrimSuffix(opts.input, filepath.Ext(opts.input)) + ".j"
	}
	return opts, nil
}

func compile(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	switch {
	case opts.logFile != "":
		if err := logger.InitFile(opts.logFile, opts.logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	case opts.cfg.Debug:
		logger.InitDev()
	default:
		if err := logger.Init(logger.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	logger.LogCompilerStart(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.watch {
		if err := watch(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := build(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// build compiles the input once and writes the results
func build(ctx context.Context, opts *options) error {
	start := time.Now()
	logger.LogFileProcessing(opts.input)

	f, err := os.Open(opts.input)
	if err != nil {
		return err
	}
	unit, err := frontend.Decode(f)
	f.Close()
	if err != nil {
		logger.LogCompilerComplete(false, time.Since(start).String())
		return fmt.Errorf("%s: %w", opts.input, err)
	}

	res, err := compiler.CompileUnit(ctx, unit, opts.cfg)
	if err != nil {
		logger.LogCompilerComplete(false, time.Since(start).String())
		return fmt.Errorf("%s: %w", opts.input, err)
	}

	if opts.out == "-" {
		if opts.ollir {
			fmt.Print(res.OLLIR)
			fmt.Println()
		}
		fmt.Print(res.Jasmin)
	} else {
		if err := os.WriteFile(opts.out, []byte(res.Jasmin), 0o644); err != nil {
			return err
		}
		if opts.ollir {
			path := strings.TrimSuffix(opts.out, filepath.Ext(opts.out)) + ".ollir"
			if err := os.WriteFile(path, []byte(res.OLLIR), 0o644); err != nil {
				return err
			}
		}
	}

	logger.LogCompilerComplete(true, time.Since(start).String())
	return nil
}
