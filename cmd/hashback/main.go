package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"runtime"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"

	"github.com/stevegt/hashback/orchestrator"
	"github.com/stevegt/hashback/runsummary"
)

func init() {
	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}
	logrus.SetReportCaller(true)
	formatter := &logrus.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	logrus.SetFormatter(formatter)
}

// caller returns the log caller formatted as `/path/to/file.go:line_number`.
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		p, _ := os.Getwd()
		return "", fmt.Sprintf("%s:%d", strings.TrimPrefix(f.File, p), f.Line)
	}
}

// Opts is bound from docopt's parse of usage below; field names match the
// long option or positional argument they correspond to, per docopt-go's
// field-matching convention (the long options carry explicit docopt tags).
type Opts struct {
	Backup     bool
	Makeindex  bool
	Rehardlink bool
	Verify     bool

	Source      string
	Backuproot  string
	Directory   string
	Exclude     string   `docopt:"--exclude"`
	Delete      bool     `docopt:"--delete"`
	Notshadowed bool     `docopt:"--not-shadowed"`
	Linkdir     string   `docopt:"--link-to-directory"`
	Linkhash    []string `docopt:"--link-to-hashtable"`
	Report      string   `docopt:"--report"`
}

func main() {
	os.Exit(run())
}

func run() (rc int) {
	usage := `hashback

Usage:
  hashback backup <source> <backuproot> [--exclude=<file>] [--delete] [--not-shadowed] [--link-to-directory=<dir>] [--link-to-hashtable=<dir>]... [--report=<file>]
  hashback makeindex <directory> [--not-shadowed] [--report=<file>]
  hashback rehardlink <directory> [--link-to-hashtable=<dir>]... [--report=<file>]
  hashback verify <directory> [--report=<file>]

Options:
  -h --help                          Show this screen.
  --version                          Show version.
  --exclude=<file>                   Exclusion pattern file.
  --delete                           Delete an existing same-day snapshot before backing up.
  --not-shadowed                     Read the live filesystem instead of a host snapshot.
  --link-to-directory=<dir>          Fingerprint dir first and let this run link to it.
  --link-to-hashtable=<dir>          Merge every sidecar found under dir into the index (not a single file or a glob).
  --report=<file>                    Write a msgpack-encoded machine-readable report to file.
`
	parser := &docopt.Parser{OptionsFirst: false}
	o, err := parser.ParseArgs(usage, os.Args[1:], "0.1")
	if err != nil {
		log.Error(err)
		return 22
	}
	var opts Opts
	if err := o.Bind(&opts); err != nil {
		log.Error(err)
		return 22
	}
	log.Debug(opts)

	orc := orchestrator.New()

	var mode orchestrator.Mode
	switch true {
	case opts.Backup:
		mode = orchestrator.Backup{
			SourcePath:           opts.Source,
			BackupRoot:           opts.Backuproot,
			ExclusionFile:        opts.Exclude,
			DeleteExistingBackup: opts.Delete,
			NotShadowed:          opts.Notshadowed,
			LinkToDirectory:      opts.Linkdir,
			LinkToHashtables:     opts.Linkhash,
		}
	case opts.Makeindex:
		mode = orchestrator.MakeIndex{
			Directory:   opts.Directory,
			NotShadowed: opts.Notshadowed,
		}
	case opts.Rehardlink:
		mode = orchestrator.Rehardlink{
			Directory:        opts.Directory,
			LinkToHashtables: opts.Linkhash,
		}
	case opts.Verify:
		mode = orchestrator.Verify{Directory: opts.Directory}
	default:
		log.Error("no mode selected")
		return 22
	}

	runCtx, runErr := orc.Run(mode)
	if runErr != nil {
		if _, ok := runErr.(*orchestrator.SnapshotExistsError); ok {
			log.Error(runErr)
			return 1
		}
		log.Error(runErr)
		return 42
	}

	runsummary.Print(os.Stdout, runCtx)
	if opts.Verify && orc.LastVerifyReport != nil {
		for _, e := range orc.LastVerifyReport.Divergent() {
			fmt.Printf("divergent: %s (stored %s, actual %s)\n", e.Path, e.Stored.String(), e.Recomputed.String())
		}
		for _, e := range orc.LastVerifyReport.Missing() {
			fmt.Printf("missing:   %s\n", e.Path)
		}
	}

	if opts.Report != "" {
		buf, err := runsummary.Encode(runCtx)
		if err != nil {
			log.Error(err)
			return 42
		}
		if err := ioutil.WriteFile(opts.Report, buf, 0644); err != nil {
			log.Error(err)
			return 42
		}
	}

	if !runCtx.Success() {
		return 2
	}
	return 0
}
