package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/render"

	"github.com/mutik-labs/mutik/internal/action"
	"github.com/mutik-labs/mutik/internal/config"
	"github.com/mutik-labs/mutik/internal/events"
	"github.com/mutik-labs/mutik/internal/logger"
	"github.com/mutik-labs/mutik/internal/metrics"
	"github.com/mutik-labs/mutik/internal/scenario"
	"github.com/mutik-labs/mutik/internal/tracing"

	_ "github.com/mutik-labs/mutik/actions/counter"
	_ "github.com/mutik-labs/mutik/actions/path"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ExitSuccess         = 0
	ExitFailure         = 1
	ExitUsageError      = 2
	ExitSigIntBase      = 128
	ExitSigInt          = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm         = ExitSigIntBase + int(syscall.SIGTERM)
	DefaultLogLevel     = "info"
	DefaultLogFmt       = "text"
	DefaultEventBusSize = 256
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return ExitUsageError
	}
	switch args[0] {
	case "--version", "-version", "version":
		printVersion(stdout)
		return ExitSuccess
	case "validate":
		return runValidateCommand(args[1:], stderr)
	case "run":
		return runExecuteCommand(context.Background(), args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", args[0])
		usage(stderr)
		return ExitUsageError
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mutik validate -scenario <path>")
	fmt.Fprintln(w, "  mutik run -scenario <path> [flags...]")
	fmt.Fprintln(w, "  mutik --version")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mutik version %s\n", version)
	fmt.Fprintf(w, "commit: %s\n", commit)
	fmt.Fprintf(w, "built: %s\n", buildDate)
	fmt.Fprintf(w, "go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func runValidateCommand(args []string, stderr io.Writer) int {
	validateFlags := flag.NewFlagSet("validate", flag.ContinueOnError)
	validateFlags.SetOutput(stderr)
	scenarioPath := validateFlags.String("scenario", "", "Path to the scenario YAML file to validate (required)")
	logLevel := validateFlags.String("log-level", DefaultLogLevel, "Log level for validation output (debug, info, warn, error)")

	validateFlags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: mutik validate -scenario <path> [flags...]")
		fmt.Fprintln(stderr, "\nValidates a scenario's schema, structure and action names.")
		fmt.Fprintln(stderr, "\nFlags:")
		validateFlags.PrintDefaults()
	}
	if err := validateFlags.Parse(args); err != nil {
		return ExitUsageError
	}
	if *scenarioPath == "" {
		fmt.Fprintln(stderr, "Error: -scenario flag is required for validation")
		validateFlags.Usage()
		return ExitUsageError
	}

	log := logger.NewLogger(*logLevel, "text", stderr)
	log.Infof("Validating scenario: %s", *scenarioPath)

	sc, err := config.LoadScenarioFromFile(*scenarioPath)
	if err == nil {
		err = scenario.NewRunner(log, action.DefaultRegistry()).Check(sc)
	}
	if err != nil {
		logLoadError(log, err)
		return ExitFailure
	}

	log.Infof("Scenario validation successful: %s", *scenarioPath)
	return ExitSuccess
}

func logLoadError(log mutiklog.Logger, err error) {
	var validationErr *mutikerrors.ValidationError
	var configErr *mutikerrors.ConfigError
	if errors.As(err, &validationErr) {
		log.Errorf("Scenario validation failed:\n%s", validationErr.Error())
	} else if errors.As(err, &configErr) {
		log.Errorf("Scenario configuration error:\n%s", configErr.Error())
	} else {
		log.Errorf("Failed to load or validate scenario: %v", err)
	}
}

func runExecuteCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	execFlags := flag.NewFlagSet("run", flag.ContinueOnError)
	execFlags.SetOutput(stderr)
	scenarioPath := execFlags.String("scenario", "", "Path to the scenario YAML file (required)")
	logLevel := execFlags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	logFormat := execFlags.String("log-format", DefaultLogFmt, "Log format (text, json)")
	metricsAddr := execFlags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090) while running")
	tick := execFlags.Duration("tick", 0, "Delay between steps (0 runs steps back to back)")

	execFlags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: mutik run -scenario <path> [flags...]")
		fmt.Fprintln(stderr, "\nRuns a scenario and prints every committed view render.")
		fmt.Fprintln(stderr, "\nFlags:")
		execFlags.PrintDefaults()
	}
	if err := execFlags.Parse(args); err != nil {
		return ExitUsageError
	}
	if *scenarioPath == "" {
		fmt.Fprintln(stderr, "Error: -scenario flag is required")
		execFlags.Usage()
		return ExitUsageError
	}
	if *logFormat != "text" && *logFormat != "json" {
		fmt.Fprintln(stderr, "Error: -log-format must be 'text' or 'json'")
		return ExitUsageError
	}
	if *tick < 0 {
		fmt.Fprintln(stderr, "Error: -tick cannot be negative")
		return ExitUsageError
	}

	log := logger.NewLogger(*logLevel, *logFormat, stderr).With("mutik_version", version)
	log.Debugf("Log level: %s, format: %s, tick: %v", *logLevel, *logFormat, *tick)

	sc, err := config.LoadScenarioFromFile(*scenarioPath)
	if err != nil {
		logLoadError(log, err)
		return ExitFailure
	}

	eventBus := events.NewChannelEventBus(DefaultEventBusSize, log)
	defer eventBus.Close()
	metricsProvider := metrics.NewPrometheusRegistryProvider()
	eventCollectors, err := metrics.NewEventCollectors(metricsProvider.Registry())
	if err != nil {
		log.Errorf("Failed to register event metrics: %v", err)
		return ExitFailure
	}
	tracerProvider, err := tracing.NewProviderFromEnv(ctx)
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider, _ = tracing.NewNoOpProvider()
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	listener := events.NewMetricsEventListener(eventBus, eventCollectors, log)
	go listener.Start(runCtx)

	if *metricsAddr != "" {
		server := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(metricsProvider.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infof("Serving metrics on %s", *metricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var receivedSignal os.Signal
	var sigMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Stopping after the current step...", sig)
			sigMu.Lock()
			receivedSignal = sig
			sigMu.Unlock()
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	runnerOpts := []scenario.Option{
		scenario.WithEventBus(eventBus),
		scenario.WithMetricsRegistryProvider(metricsProvider),
		scenario.WithTracerProvider(tracerProvider),
		scenario.WithCommitHook(func(o render.Output) {
			fmt.Fprintf(stdout, "[%s] %s\n", o.Node, o.Value)
		}),
	}
	if *tick > 0 {
		ticker := time.NewTicker(*tick)
		defer ticker.Stop()
		runnerOpts = append(runnerOpts, scenario.WithTicks(ticker.C))
	}

	log.Infof("Running scenario: %s", sc.FilePath)
	report, runErr := scenario.NewRunner(log, action.DefaultRegistry(), runnerOpts...).Run(runCtx, sc)

	cancelRun()
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if shutdownErr := tracerProvider.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("Error shutting down tracer provider: %v", shutdownErr)
	}

	printReportSummary(log, report, runErr)

	sigMu.Lock()
	finalSignal := receivedSignal
	sigMu.Unlock()
	return determineExitCode(runErr, finalSignal, log)
}

func printReportSummary(log mutiklog.Logger, report *scenario.Report, runErr error) {
	if report == nil {
		log.Warnf("Run finished without a report (likely due to early failure).")
		if runErr != nil {
			log.Errorf("Run Error: %v", runErr)
		}
		return
	}
	summary := fmt.Sprintf("Scenario '%s' finished. Duration: %v. Steps=%d, Commits=%d, Passes=%d, Restarts=%d",
		report.Scenario, report.Duration.Truncate(time.Millisecond),
		report.Steps, report.Commits, report.Passes, report.Restarts)
	if runErr != nil {
		log.Errorf("%s", summary)
		var execErr *mutikerrors.ActionExecutionError
		if errors.As(runErr, &execErr) {
			log.Errorf("Step %d ('%s') failed: %v", execErr.Step, execErr.ActionName, execErr.Cause)
		}
		return
	}
	log.Infof("%s", summary)
}

func determineExitCode(runErr error, sig os.Signal, log mutiklog.Logger) int {
	if runErr == nil {
		log.Infof("Scenario completed successfully.")
		return ExitSuccess
	}
	if errors.Is(runErr, context.Canceled) && sig != nil {
		switch sig {
		case syscall.SIGINT:
			log.Warnf("Scenario interrupted by signal: SIGINT")
			return ExitSigInt
		case syscall.SIGTERM:
			log.Warnf("Scenario terminated by signal: SIGTERM")
			return ExitSigTerm
		}
	}
	var tearing *mutikerrors.TearingError
	if errors.As(runErr, &tearing) {
		log.Errorf("Views could not be rendered consistently after %d restarts.", tearing.Restarts)
	}
	return ExitFailure
}
