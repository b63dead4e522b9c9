// Command xmlidx inspects and maintains a value index and its node page
// file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/andreyvit/xmlidx"
	"github.com/andreyvit/xmlidx/domfile"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

type env struct {
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	e := &env{stdout: stdout, stderr: stderr}
	if len(args) < 2 {
		printUsage(stderr)
		return 1
	}
	switch args[1] {
	case "load":
		return e.loadCmd(args[2:])
	case "dump":
		return e.dumpCmd(args[2:])
	case "keys":
		return e.keysCmd(args[2:])
	case "find":
		return e.findCmd(args[2:])
	case "drop":
		return e.dropCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: xmlidx <command> [flags]

commands:
  load  -doc N -collection N file.xml   store a document's nodes and index its values
  dump  -doc N [-gid N | -addr P:T]     print a document's nodes in storage order
  keys  -docs N,... -type T [-start V]  print distinct values with occurrence counts
  find  -docs N,... -type T -op OP V    print nodes whose value relates to V
        -docs N,... -match RE           print nodes whose string value matches RE
  drop  -collection N [-doc N]          remove a collection or document from the index

Every command takes -config FILE (YAML); XMLIDX_* variables override it.
`)
}

// commonFlags are shared by every command.
type commonFlags struct {
	config     *string
	collection *uint
}

func newFlagSet(name string, e *env) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs, commonFlags{
		config:     fs.String("config", "", "path to YAML config file"),
		collection: fs.Uint("collection", 1, "collection id"),
	}
}

// setup loads the config and installs the logger.
func (e *env) setup(cf commonFlags) (*xmlidx.Config, *slog.Logger, error) {
	cfg, err := xmlidx.LoadConfig(*cf.config)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Logging, e.stderr), nil
}

func (e *env) fail(logger *slog.Logger, msg string, err error) int {
	if logger != nil {
		logger.Error(msg, "error", err)
	} else {
		fmt.Fprintf(e.stderr, "%s: %v\n", msg, err)
	}
	return 1
}

func openIndex(cfg *xmlidx.Config, logger *slog.Logger, readOnly bool) (*xmlidx.ValueIndex, error) {
	opt := cfg.Options()
	opt.Logger = logger
	opt.ReadOnly = opt.ReadOnly || readOnly
	return xmlidx.Open(cfg.Index.Path, opt)
}

func storageOptions(cfg *xmlidx.Config, logger *slog.Logger) domfile.Options {
	return domfile.Options{
		Logger:      logger,
		LockTimeout: cfg.Storage.LockTimeout,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// catalogDoc stands in for a catalog entry when only the ids are known.
// Queries without a context set never ask for structure.
type catalogDoc struct {
	id  xmlidx.DocID
	cid xmlidx.CollectionID
}

func (d catalogDoc) ID() xmlidx.DocID                           { return d.id }
func (d catalogDoc) CollectionID() xmlidx.CollectionID          { return d.cid }
func (d catalogDoc) Parent(xmlidx.NodeID) (xmlidx.NodeID, bool) { return 0, false }
func (d catalogDoc) TreeLevel(xmlidx.NodeID) int                { return 0 }
func (d catalogDoc) ReindexRequired() int                       { return 0 }

// parseDocSet parses a comma-separated list of document ids.
func parseDocSet(s string, cid xmlidx.CollectionID) (*xmlidx.DocSet, error) {
	set := xmlidx.NewDocSet()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q", part)
		}
		set.Add(catalogDoc{xmlidx.DocID(id), cid})
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("no documents given")
	}
	return set, nil
}

func parseAddress(s string) (domfile.Address, error) {
	pg, tid, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid address %q, wanted page:tid", s)
	}
	p, err := strconv.ParseUint(pg, 10, 48)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	t, err := strconv.ParseUint(tid, 10, 14)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return domfile.MakeAddress(p, uint16(t)), nil
}
