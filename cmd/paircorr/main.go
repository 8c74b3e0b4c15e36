// Command paircorr runs binned redshift routines over object catalogs,
// optionally partitioned into jobs and overlapping z slices.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/dusk-indust/paircorr/internal/driver"
	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/logging"
)

// version is set at build time.
var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Config  string `arg:"" help:"Configuration file (YAML)." type:"existingfile"`
	Routine string `arg:"" help:"Routine file; its base name selects the routine." type:"existingfile"`

	NJobs   *int  `name:"nJobs" help:"Number of jobs the work is split into. Alone, combines their outputs."`
	IJob    []int `name:"iJob" sep:"," help:"Job indices to execute: --iJob 0 2, --iJob 0,2 or repeated."`
	NCores  *int  `name:"nCores" help:"Maximum number of jobs run concurrently."`
	ISliceZ *int  `name:"iSliceZ" help:"Index of the z slice to compute."`
	Show    bool  `help:"Describe the configuration and outputs instead of computing."`

	Isolation string `default:"process" enum:"process,inline" help:"How jobs are run: process or inline."`
	OutputDir string `name:"output-dir" type:"path" help:"Override the configured output directory."`
	Ledger    string `type:"path" help:"SQLite run ledger; disabled when empty."`
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format."`
	RunID     string `name:"run-id" hidden:"" env:"PAIRCORR_RUN_ID"`

	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("paircorr"),
		kong.Description("Compute binned redshift statistics, split into jobs and z slices."),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	if _, err := parser.Parse(joinListFlag(args, "--iJob")); err != nil {
		return err
	}

	opts, err := cli.options(stdout, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return driver.Run(ctx, opts)
}

// joinListFlag folds the integers following flag into its comma-separated
// value, so "--iJob 0 2" parses as "--iJob 0,2". Tokens after "--" are left
// alone.
func joinListFlag(args []string, flag string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return append(out, args[i:]...)
		}
		var vals []string
		switch {
		case a == flag && i+1 < len(args):
			i++
			vals = append(vals, args[i])
		case strings.HasPrefix(a, flag+"="):
			vals = append(vals, strings.TrimPrefix(a, flag+"="))
		default:
			out = append(out, a)
			continue
		}
		for i+1 < len(args) && isInt(args[i+1]) {
			i++
			vals = append(vals, args[i])
		}
		out = append(out, flag+"="+strings.Join(vals, ","))
	}
	return out
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// options converts parsed flags into driver options.
func (c *CLI) options(stdout, stderr io.Writer) (driver.Options, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return driver.Options{}, err
	}
	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return driver.Options{}, err
	}
	cfgPath, err := filepath.Abs(c.Config)
	if err != nil {
		return driver.Options{}, err
	}
	routinePath, err := filepath.Abs(c.Routine)
	if err != nil {
		return driver.Options{}, err
	}

	return driver.Options{
		ConfigPath:  cfgPath,
		RoutinePath: routinePath,
		Jobs: job.Flags{
			NJobs:  c.NJobs,
			IJob:   c.IJob,
			NCores: c.NCores,
			Show:   c.Show,
		},
		ISliceZ:    c.ISliceZ,
		OutputDir:  c.OutputDir,
		LedgerPath: c.Ledger,
		Isolation:  driver.Isolation(c.Isolation),
		RunID:      c.RunID,
		WorkerArgs: c.workerArgs(cfgPath, routinePath),
		Logger:     logging.New(stderr, level, format),
		Stdout:     stdout,
	}, nil
}

// workerArgs are the flags a re-executed worker needs besides its job.
func (c *CLI) workerArgs(cfgPath, routinePath string) []string {
	args := []string{cfgPath, routinePath,
		"--log-level", c.LogLevel,
		"--log-format", c.LogFormat,
	}
	if c.ISliceZ != nil {
		args = append(args, "--iSliceZ", strconv.Itoa(*c.ISliceZ))
	}
	if c.OutputDir != "" {
		args = append(args, "--output-dir", c.OutputDir)
	}
	if c.Ledger != "" {
		args = append(args, "--ledger", c.Ledger)
	}
	return args
}
