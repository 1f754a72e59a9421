package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/catalog"
	"codeberg.org/mutker/fleetinv/internal/collector"
	"codeberg.org/mutker/fleetinv/internal/config"
	"codeberg.org/mutker/fleetinv/internal/credential"
	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
	"codeberg.org/mutker/fleetinv/internal/pid"
	"codeberg.org/mutker/fleetinv/internal/sink"
)

const (
	logFileName      = "fleetinv.log"
	summaryBatchName = "inventory_summary"
)

// Exit codes: a run that wrote output but recorded errors exits 1 so
// schedulers can tell a degraded batch from a failed start.
const (
	exitOK        = 0
	exitRunErrors = 1
	exitFatal     = 2
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(exitFatal)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	setLogLevel(cfg.LogLevel)

	if cfg.LogDir != "" {
		if err := logger.AddFile(cfg.LogDir, logFileName); err != nil {
			logger.Warn().Err(err).Msg("Continuing without log file")
		}
	}

	logger.Debug().Msg("Config loaded")
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := pid.Write(); err != nil {
		logger.Error().Err(err).Msg("Refusing to start")

		return exitFatal
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	store, err := credential.NewStore(credentialSpecs())
	if err != nil {
		logger.Error().Err(err).Msg("Invalid credential configuration")

		return exitFatal
	}

	backendCfg := backend.Config{
		Timeout:     cfg.Backend.Timeout,
		InsecureTLS: cfg.Backend.InsecureTLS,
		PageSize:    cfg.Backend.PageSize,
	}
	registry := backend.NewRegistry(backend.NewOneView(backendCfg), backend.NewOME(backendCfg))

	coll, err := collector.New(registry, store, collector.Config{
		TargetConcurrency: cfg.Collector.TargetConcurrency,
		FetchConcurrency:  cfg.Collector.FetchConcurrency,
		Categories:        cfg.Collector.Categories,
		Retry: collector.RetryPolicy{
			MaxAttempts: cfg.Collector.RetryAttempts,
			Delay:       cfg.Collector.RetryDelay,
			Step:        cfg.Collector.RetryStep,
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("Invalid collector configuration")

		return exitFatal
	}

	targets, servers, catErr := gatherTargets(ctx)
	if catErr != nil {
		if len(targets) == 0 {
			logger.Error().Err(catErr).Msg("Target discovery failed")

			return exitFatal
		}
		logger.Error().Err(catErr).Msg("Catalog discovery failed; continuing with configured targets")
	}

	report, err := coll.Collect(ctx, targets)
	if err != nil {
		logger.Error().Err(err).Msg("Collection run failed")

		return exitFatal
	}

	writeOutputs(report, servers)
	logReport(report)

	if report.HasErrors() || catErr != nil {
		return exitRunErrors
	}

	return exitOK
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func setLogLevel(level string) {
	switch config.LogLevel(level) {
	case config.LogLevelDebug:
		logger.SetLogLevel(logger.DebugLevel)
	case config.LogLevelInfo:
		logger.SetLogLevel(logger.InfoLevel)
	case config.LogLevelWarning:
		logger.SetLogLevel(logger.WarnLevel)
	case config.LogLevelError:
		logger.SetLogLevel(logger.ErrorLevel)
	}
}

func credentialSpecs() map[string]credential.Spec {
	specs := make(map[string]credential.Spec, len(cfg.Credentials))
	for key, c := range cfg.Credentials {
		specs[key] = credential.Spec(c)
	}

	return specs
}

// gatherTargets merges the statically configured targets with catalog
// discovery. A catalog failure leaves the static targets usable; the error
// is returned so the run can be marked degraded.
func gatherTargets(ctx context.Context) ([]inventory.Target, map[string]catalog.Server, error) {
	targets := make([]inventory.Target, 0, len(cfg.Targets))
	seen := make(map[string]struct{}, len(cfg.Targets))

	for _, t := range cfg.Targets {
		if _, dup := seen[t.Address]; dup {
			continue
		}
		seen[t.Address] = struct{}{}
		targets = append(targets, inventory.Target{Address: t.Address, Kind: t.Kind})
	}

	servers := make(map[string]catalog.Server)
	if cfg.Catalog.URL == "" {
		return targets, servers, nil
	}

	src, err := catalog.NewSource(catalog.Config{
		URL:           cfg.Catalog.URL,
		ApplicationID: cfg.Catalog.ApplicationID,
		PageSize:      cfg.Catalog.PageSize,
		MaxPages:      cfg.Catalog.MaxPages,
		Timeout:       cfg.Catalog.Timeout,
		InsecureTLS:   cfg.Catalog.InsecureTLS,
		ResolveNames:  cfg.Catalog.ResolveNames,
	}, logger.Default())
	if err != nil {
		return targets, servers, err
	}

	discovered, err := src.Servers(ctx)
	if err != nil {
		return targets, servers, err
	}

	for _, srv := range discovered {
		addr := srv.Name
		if addr == "" {
			addr = srv.IP
		}
		if addr == "" {
			logger.Warn().Str("serial", srv.Serial).Msg("Catalog entry without name or address skipped")

			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		targets = append(targets, inventory.Target{Address: addr, IP: srv.IP})
		servers[addr] = srv
	}

	return targets, servers, nil
}

func writeOutputs(report *collector.Report, servers map[string]catalog.Server) {
	sinks := make([]sink.Sink, 0, 2)

	csvSink, err := sink.NewCSV(sink.CSVConfig{
		Dir:       cfg.Output.Dir,
		Region:    cfg.Region,
		DBPrefix:  cfg.Output.DBPrefix,
		Delimiter: cfg.Output.Delimiter,
	}, report.RunID, report.BatchEpoch, logger.Default())
	if err != nil {
		report.SinkErrors = append(report.SinkErrors, err)
	} else {
		sinks = append(sinks, csvSink)
	}

	if cfg.Output.SQLiteEnabled {
		sq, err := sink.NewSQLite(sink.SQLiteConfig{Path: cfg.Output.SQLitePath}, logger.Default())
		if err != nil {
			report.SinkErrors = append(report.SinkErrors, err)
		} else {
			sinks = append(sinks, sq)
		}
	}

	if len(sinks) == 0 {
		return
	}

	batches := buildBatches(report, servers)

	for _, s := range sinks {
		for _, batch := range batches {
			if err := s.WriteBatch(batch); err != nil {
				report.SinkErrors = append(report.SinkErrors, err)
			}
		}
		if err := s.Close(); err != nil {
			report.SinkErrors = append(report.SinkErrors, err)
		}
	}
}

// buildBatches emits one batch per collected category, in declaration order,
// plus the per-target inventory summary.
func buildBatches(report *collector.Report, servers map[string]catalog.Server) []sink.Batch {
	batches := make([]sink.Batch, 0, len(report.Records)+1)

	for _, cat := range inventory.Categories() {
		rows := report.Records[cat.Name]
		if len(rows) == 0 {
			continue
		}
		batches = append(batches, sink.Batch{Name: cat.Name, Schema: cat.Schema, Rows: rows})
	}

	return append(batches, summaryBatch(report, servers))
}

func summarySchema() inventory.Schema {
	return inventory.Schema{
		{Name: "ResourceId", Type: inventory.TypeString},
		{Name: "ServerName", Type: inventory.TypeString},
		{Name: "SerialNumber", Type: inventory.TypeString},
		{Name: "AppId", Type: inventory.TypeString},
		{Name: "AppName", Type: inventory.TypeString},
		{Name: "ConsoleIp", Type: inventory.TypeString},
		{Name: "SystemType", Type: inventory.TypeString},
		{Name: "EntityCount", Type: inventory.TypeInt},
		{Name: "CollectedEpoch", Type: inventory.TypeInt},
	}
}

// summaryBatch builds one row per target: catalog identity where the target
// came from the catalog, collection outcome either way.
func summaryBatch(report *collector.Report, servers map[string]catalog.Server) sink.Batch {
	rows := make([]inventory.DetailRecord, 0, len(report.Targets))

	for i := range report.Targets {
		tr := &report.Targets[i]
		srv := servers[tr.Target.Address]

		name := srv.Name
		if name == "" {
			name = tr.Target.Address
		}

		ip := srv.IP
		if ip == "" {
			ip = tr.Target.IP
		}

		systemType := ""
		if tr.Kind != backend.KindUnknown {
			systemType = tr.Kind.String()
		}

		appName := ""
		if srv.AppID != "" {
			appName = srv.AppName()
		}

		rows = append(rows, inventory.DetailRecord{
			Category: summaryBatchName,
			Fields: map[string]inventory.Value{
				"ResourceId":     inventory.StringValue(srv.ResourceID),
				"ServerName":     inventory.StringValue(name),
				"SerialNumber":   inventory.StringValue(srv.Serial),
				"AppId":          inventory.StringValue(srv.AppID),
				"AppName":        inventory.StringValue(appName),
				"ConsoleIp":      inventory.StringValue(ip),
				"SystemType":     inventory.StringValue(systemType),
				"EntityCount":    inventory.IntValue(int64(tr.EntityCount)),
				"CollectedEpoch": inventory.IntValue(report.BatchEpoch),
			},
		})
	}

	return sink.Batch{Name: summaryBatchName, Schema: summarySchema(), Rows: rows}
}

func logReport(report *collector.Report) {
	errorCount := len(report.SinkErrors)

	for i := range report.Targets {
		tr := &report.Targets[i]
		errorCount += len(tr.Errors)

		for _, err := range tr.Errors {
			var coded errors.Error
			if errors.As(err, &coded) {
				logger.ErrorWithCode(coded).Str("target", tr.Target.Address).Msg("")
			} else {
				logger.Error().Str("target", tr.Target.Address).Err(err).Msg("Collection error")
			}
		}
	}

	for _, err := range report.SinkErrors {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("")
		} else {
			logger.Error().Err(err).Msg("Sink error")
		}
	}

	logger.Info().
		Str("run_id", report.RunID).
		Int64("batch_epoch", report.BatchEpoch).
		Int("targets", len(report.Targets)).
		Int("entities", report.TotalEntities()).
		Int("records", report.TotalRecords()).
		Int("errors", errorCount).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Run complete")
}
