package main

import "os"

import "github.com/alexflint/go-arg"
import "go.uber.org/zap"

import "github.com/neurlang/finetune/config"
import "github.com/neurlang/finetune/job"
import "github.com/neurlang/finetune/logging"
import "github.com/neurlang/finetune/report"

type args struct {
	ConfigPath  string `arg:"-c,--config" help:"YAML job file"`
	WriteConfig string `arg:"--write-config" help:"write the effective configuration to this file and exit"`
	JSONLogs    bool   `arg:"--json-logs" help:"log JSON records"`
	Verbose     bool   `arg:"-v,--verbose"`
	PGO         bool   `arg:"--pgo" help:"collect a CPU profile into default.pgo until interrupted"`
	config.Config
}

// parseArgs layers the defaults, the YAML file named by --config and the
// flags, in that order of precedence
func parseArgs(argv []string) (args, *arg.Parser, error) {
	var a = args{Config: config.Default()}
	p, err := arg.NewParser(arg.Config{}, &a)
	if err != nil {
		return a, nil, err
	}
	if err := p.Parse(argv); err != nil {
		return a, p, err
	}
	if a.ConfigPath != "" {
		if err := a.Config.Overlay(a.ConfigPath); err != nil {
			return a, p, err
		}
		// flags take precedence over the file. A parser restores its
		// starting values for absent flags, so the file values need a new one.
		if p, err = arg.NewParser(arg.Config{}, &a); err != nil {
			return a, nil, err
		}
		if err := p.Parse(argv); err != nil {
			return a, p, err
		}
	}
	return a, p, nil
}

func main() {
	a, p, err := parseArgs(os.Args[1:])
	if err == arg.ErrHelp {
		p.WriteHelp(os.Stdout)
		return
	}
	if err != nil {
		if p != nil && a.ConfigPath == "" {
			p.Fail(err.Error())
		}
		logging.New(a.JSONLogs, a.Verbose).Fatal("config", zap.Error(err))
	}

	log := logging.New(a.JSONLogs, a.Verbose)
	defer log.Sync()

	if a.PGO {
		profile()
	}
	if a.WriteConfig != "" {
		if err := a.Config.Save(a.WriteConfig); err != nil {
			log.Fatal("write config", zap.Error(err))
		}
		return
	}

	rep, err := job.Run(a.Config, log)
	if len(rep.Runs) > 0 {
		report.Print(os.Stdout, rep)
	}
	if err != nil {
		log.Error("fine-tuning failed", zap.Error(err), zap.Int("completed_runs", len(rep.Runs)))
		log.Sync()
		os.Exit(1)
	}
}
