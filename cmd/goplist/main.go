// goplist converts property lists between the XML, binary, JSON and
// OpenStep formats.
//
// Usage:
//
//	goplist detect FILE...
//	goplist convert -f FORMAT [-p] [-o OUT] [FILE]
//	goplist print [--color auto|always|never] [-f FORMAT] [FILE]
//	goplist version
//
// FILE defaults to standard input. Gzip and zstd compressed input is
// decompressed transparently.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/reoring/goplist"
)

// errUsage marks command line mistakes; it maps to exit status 2.
var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env carries the streams a command writes to.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		usage(stderr)
		return errUsage
	}
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}
	switch sub := args[0]; sub {
	case "detect":
		return detectCmd(e, args[1:])
	case "convert":
		return convertCmd(e, args[1:])
	case "print":
		return printCmd(e, args[1:])
	case "version", "--version":
		fmt.Fprintf(stdout, "goplist %s\n", goplist.Version())
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", sub)
		usage(stderr)
		return errUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `goplist converts property lists between xml, binary, json and openstep.

Usage:
  goplist detect FILE...
  goplist convert -f FORMAT [-p] [-o OUT] [FILE]
  goplist print [--color auto|always|never] [-f FORMAT] [FILE]
  goplist version

Run "goplist COMMAND --help" for the flags of a command.`)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseFlags parses args and handles --help. It reports done when the
// command should return without doing anything else.
func parseFlags(e *env, fs *pflag.FlagSet, args []string) (done bool, err error) {
	fs.SetOutput(e.stderr)
	fs.BoolP("help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return true, fmt.Errorf("%w: %v", errUsage, err)
	}
	if help, _ := fs.GetBool("help"); help {
		fs.SetOutput(e.stdout)
		fs.PrintDefaults()
		return true, nil
	}
	return false, nil
}

func detectCmd(e *env, args []string) error {
	fs := pflag.NewFlagSet("detect", pflag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	if done, err := parseFlags(e, fs, args); done {
		return err
	}
	cfg, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	e.logger = newLogger(e.stderr, cf.verbose)

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	var failed error
	for _, name := range files {
		data, err := readInput(e, name)
		if err != nil {
			return err
		}
		_, f, err := goplist.Decode(data, cfg.decodeOpt)
		if err != nil {
			fmt.Fprintf(e.stdout, "%s: invalid (%v)\n", name, err)
			failed = err
			continue
		}
		fmt.Fprintf(e.stdout, "%s: %s\n", name, f)
	}
	return failed
}

func convertCmd(e *env, args []string) error {
	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	var cf commonFlags
	var out string
	cf.register(fs)
	cf.registerOutput(fs)
	fs.StringVarP(&out, "output", "o", "-", "output file (- for standard output)")
	if done, err := parseFlags(e, fs, args); done {
		return err
	}
	cfg, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	e.logger = newLogger(e.stderr, cf.verbose)
	if cfg.format == goplist.FormatNone {
		return fmt.Errorf("%w: convert requires --format", errUsage)
	}
	in, err := inputName(fs)
	if err != nil {
		return err
	}

	encoded, err := transcode(e, in, cfg)
	if err != nil {
		return err
	}
	if out == "-" {
		_, err = e.stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	e.logger.Debug("wrote output", "path", out, "bytes", len(encoded))
	return nil
}

func printCmd(e *env, args []string) error {
	fs := pflag.NewFlagSet("print", pflag.ContinueOnError)
	var cf commonFlags
	cf.register(fs)
	cf.registerOutput(fs)
	fs.StringVar(&cf.color, "color", "auto", "syntax highlighting: auto, always or never")
	if done, err := parseFlags(e, fs, args); done {
		return err
	}
	cfg, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	e.logger = newLogger(e.stderr, cf.verbose)
	if cfg.format == goplist.FormatNone {
		cfg.format = goplist.FormatJSON
	}
	if !fs.Changed("prettify") && !cfg.prettifySet {
		cfg.encodeOpt.Prettify = true
	}
	if cfg.format == goplist.FormatBinary {
		return fmt.Errorf("%w: print writes text; use convert for binary output", errUsage)
	}
	in, err := inputName(fs)
	if err != nil {
		return err
	}

	encoded, err := transcode(e, in, cfg)
	if err != nil {
		return err
	}
	if !useColor(cfg.color, e.stdout) {
		_, err = e.stdout.Write(encoded)
		return err
	}
	return highlight(e.stdout, string(encoded), cfg.format)
}

func inputName(fs *pflag.FlagSet) (string, error) {
	switch fs.NArg() {
	case 0:
		return "-", nil
	case 1:
		return fs.Arg(0), nil
	}
	return "", fmt.Errorf("%w: expected at most one input file, got %d", errUsage, fs.NArg())
}

// transcode reads one input and re-encodes it in the configured format.
func transcode(e *env, in string, cfg settings) ([]byte, error) {
	data, err := readInput(e, in)
	if err != nil {
		return nil, err
	}
	v, from, err := goplist.Decode(data, cfg.decodeOpt)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("decoded input", "path", in, "format", from.String(), "bytes", len(data))
	encoded, err := goplist.Encode(v, cfg.format, cfg.encodeOpt)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("encoded output", "format", cfg.format.String(), "bytes", len(encoded))
	return encoded, nil
}
