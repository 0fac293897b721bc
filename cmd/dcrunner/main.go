// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/gops/agent"

	"github.com/clustercockpit-labs/dcrunner/elements"
	"github.com/clustercockpit-labs/dcrunner/internal/adminapi"
	"github.com/clustercockpit-labs/dcrunner/internal/bgprocess"
	"github.com/clustercockpit-labs/dcrunner/internal/config"
	"github.com/clustercockpit-labs/dcrunner/internal/ledger"
	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/pluginsource"
	"github.com/clustercockpit-labs/dcrunner/internal/runtimeenv"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/internal/taskgroup"
	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

func main() {
	var flagConfigFile, flagLogLevel, flagEnvFile string
	var flagGops, flagListElements bool
	flag.StringVar(&flagConfigFile, "config", "./dcrunner.yaml", "Path to the pipeline configuration document")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Bootstrap log level: error, warn, info, debug, trace")
	flag.StringVar(&flagEnvFile, "env", "./.env", "Path to an optional .env file loaded before config")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagListElements, "list-elements", false, "Print every registered element's name, ports and types, then exit")
	flag.Parse()

	if lvl := os.Getenv("DC_LOG"); lvl != "" {
		flagLogLevel = lvl
	}
	dclog.SetLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			dclog.Fatalf("gops/agent.Listen failed: %s", err)
		}
	}

	if err := runtimeenv.LoadEnvFile(flagEnvFile); err != nil {
		dclog.Fatalf("loading %s: %s", flagEnvFile, err)
	}

	md := metadata.NewRegistry()
	reg := plugin.NewRegistry(md, plugin.DuplicateWarnKeepLast)
	if err := reg.RegisterInProcess("dcrunner-elements", elements.Init); err != nil {
		dclog.Fatalf("registering bundled elements: %s", err)
	}

	if flagListElements {
		listElements(reg)
		return
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		dclog.Fatalf("loading %s: %s", flagConfigFile, err)
	}

	if cfg.Plugin.OnDuplicate == "fatal" {
		reg = plugin.NewRegistry(md, plugin.DuplicateFatal)
		if err := reg.RegisterInProcess("dcrunner-elements", elements.Init); err != nil {
			dclog.Fatalf("registering bundled elements: %s", err)
		}
	}

	ctx := context.Background()
	for _, entry := range cfg.Plugin.PluginFiles {
		path, cleanup, err := pluginsource.Resolve(ctx, entry)
		if err != nil {
			dclog.Fatalf("resolving plugin %s: %s", entry, err)
		}
		loadErr := reg.LoadSharedLibrary(path)
		cleanup()
		if loadErr != nil {
			dclog.Fatalf("loading plugin %s: %s", entry, loadErr)
		}
	}
	for _, dir := range runtimeenv.PluginSearchPaths() {
		dclog.Debugf("runner: plugin search path %s (not scanned; only plugin_files are loaded)", dir)
	}

	if err := bgprocess.RunHooks("before_task", cfg.BeforeTask); err != nil {
		dclog.Fatalf("%s", err)
	}

	plan, err := taskgroup.Build(cfg.Tasks, reg, cfg.Runner.ChannelCapacity)
	if err != nil {
		dclog.Fatalf("planning task graph: %s", err)
	}

	coord := shutdown.New(config.TerminationTimeout(cfg), config.FinalizerTimeout(cfg))
	coord.InstallSignalHandler()

	var store *ledger.Store
	if cfg.Ledger.Enabled {
		store, err = ledger.Open(cfg.Ledger.Driver, cfg.Ledger.DSN)
		if err != nil {
			dclog.Fatalf("opening ledger: %s", err)
		}
		defer store.Close()
	}

	var adminSrv *adminapi.Server
	if cfg.AdminAPI.Enabled {
		adminSrv = adminapi.New(cfg.AdminAPI, plan, reg, store, coord)
		if err := adminSrv.Start(); err != nil {
			dclog.Fatalf("starting admin API: %s", err)
		}
	}

	procs, err := bgprocess.Start(cfg.BgProcesses, 10*time.Second)
	if err != nil {
		dclog.Fatalf("starting background processes: %s", err)
	}

	runtimeenv.SystemdNotify(true, "running")

	ex := taskgroup.NewExecutor(plan, md, coord, cfg.Runner.MetadataPadding)
	ex.Run()

	coord.RunFinalizers()

	for _, p := range procs {
		p.Stop()
	}
	if adminSrv != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		adminSrv.Stop(stopCtx)
		cancel()
	}

	if err := bgprocess.RunHooks("after_task", cfg.AfterTask); err != nil {
		dclog.Errorf("%s", err)
	}

	dclog.Info("runner: graceful shutdown complete")
}

// listElements prints every currently registered element's name,
// port counts and accepted/produced types, one per line, for operator
// inspection of a plugin set without running a pipeline.
func listElements(reg *plugin.Registry) {
	names := reg.Names()
	for _, name := range names {
		d, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		accepted := make([]string, len(d.AcceptedTypes))
		for i, set := range d.AcceptedTypes {
			types := make([]string, len(set))
			for j, t := range set {
				types[j] = t.String()
			}
			accepted[i] = strings.Join(types, "|")
		}
		produced := make([]string, len(d.ProducedTypes))
		for i, t := range d.ProducedTypes {
			produced[i] = t.String()
		}
		fmt.Printf("%s\trecv=%d send=%d accepted=[%s] produced=[%s]\n",
			d.Name, d.RecvPorts, d.SendPorts, strings.Join(accepted, ","), strings.Join(produced, ","))
	}
}
