package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jhkim/fragscapy-go/pkg/config"
	"github.com/jhkim/fragscapy-go/pkg/driver"
	"github.com/jhkim/fragscapy-go/pkg/engine"
	"github.com/jhkim/fragscapy-go/pkg/nfrule"
	"github.com/jhkim/fragscapy-go/pkg/queue"
	"github.com/jhkim/fragscapy-go/pkg/telemetry"
	"github.com/jhkim/fragscapy-go/pkg/txsock"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start FILE...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Run the full test suite against one or more configuration files",
	RunE:  runStart,
}

var startFlags struct {
	modifFile   string
	stdout      string
	stderr      string
	localPcap   string
	remotePcap  string
	appendMode  bool
	repeat      int
	metricsAddr string
	ifaceIndex  int
	noResults   bool
}

func init() {
	startCmd.Flags().StringVar(&startFlags.modifFile, "modif-file", "modif_{conf}.log", "modification log pattern (may embed {conf}/{i})")
	startCmd.Flags().StringVar(&startFlags.stdout, "stdout", "", "stdout capture pattern (may embed {conf}/{i}/{j})")
	startCmd.Flags().StringVar(&startFlags.stderr, "stderr", "", "stderr capture pattern (may embed {conf}/{i}/{j})")
	startCmd.Flags().StringVar(&startFlags.localPcap, "local-pcap", "", "local-view capture pattern")
	startCmd.Flags().StringVar(&startFlags.remotePcap, "remote-pcap", "", "remote-view capture pattern")
	startCmd.Flags().BoolVar(&startFlags.appendMode, "append", false, "append to existing output files instead of truncating")
	startCmd.Flags().IntVar(&startFlags.repeat, "repeat", 0, "repetitions per case (0: 1 if deterministic, else config default)")
	startCmd.Flags().BoolVar(&startFlags.noResults, "no-results", false, "suppress the final summary")
	startCmd.Flags().StringVar(&startFlags.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	startCmd.Flags().IntVar(&startFlags.ifaceIndex, "iface-index", 0, "link-layer interface index for raw L2 send (0: no L2 sender)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := telemetry.LogLevel(cfg.Framework.LogLevel)
	if verbose {
		level = telemetry.LogLevelDebug
	}
	log := telemetry.NewLogger(telemetry.LoggerConfig{
		Level:  level,
		Format: telemetry.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})
	metrics := telemetry.NewMetrics()

	if startFlags.metricsAddr != "" {
		go func() {
			log.Info("serving metrics", "addr", startFlags.metricsAddr)
			if err := http.ListenAndServe(startFlags.metricsAddr, metrics.Handler()); err != nil {
				log.Error("metrics server exited", "error", err)
			}
		}()
	}

	installer, err := nfrule.NewInstaller()
	if err != nil {
		return fmt.Errorf("start: init rule installer: %w", err)
	}

	var link txsock.LinkSender
	if startFlags.ifaceIndex != 0 {
		l, err := txsock.NewAFPacketSender(startFlags.ifaceIndex)
		if err != nil {
			return fmt.Errorf("start: init link sender: %w", err)
		}
		link = l
	}
	sender, err := txsock.New(link)
	if err != nil {
		return fmt.Errorf("start: init raw socket: %w", err)
	}

	eng := engine.New(sender, log, metrics)

	var extraRules []nfrule.Rule
	for _, q := range cfg.Queues {
		extraRules = append(extraRules, q.Rule())
	}

	opts := driver.Options{
		ModifFilePattern: startFlags.modifFile,
		StdoutPattern:    startFlags.stdout,
		StderrPattern:    startFlags.stderr,
		LocalPcap:        startFlags.localPcap,
		RemotePcap:       startFlags.remotePcap,
		Append:           startFlags.appendMode,
		Repeat:           startFlags.repeat,
		DefaultRepeat:    cfg.Execution.DefaultRepeat,
	}

	d := driver.New(log, metrics, installer, sender, opts)
	d.SetEngine(eng)
	d.SetQueues(extraRules, func(qnum uint16, v6 bool) (queue.Queue, error) {
		return queue.DialLinuxQueue(qnum, v6)
	})

	summary, err := d.Run(context.Background(), args)
	if err != nil {
		return err
	}

	if !startFlags.noResults {
		fmt.Println(summary.String())
	}
	return nil
}
