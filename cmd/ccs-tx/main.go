// Package main provides ccs-tx, the live transmitter: it replays a label
// session as classifier events, drives the cadence pipeline and fans every
// interval change out to BLE advertising, MQTT telemetry, gRPC health and
// the run database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ccs-cadence/internal/advert"
	"github.com/danielpatrickdp/ccs-cadence/internal/cadence"
	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/harness"
	"github.com/danielpatrickdp/ccs-cadence/internal/labels"
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
	"github.com/danielpatrickdp/ccs-cadence/internal/store"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
	"github.com/danielpatrickdp/ccs-cadence/internal/telemetry"
)

var (
	txProfile  string
	txConfig   string
	txSession  string
	txCadence  int64
	txTick     int64
	txU        float64
	txEvents   int
	txDB       string
	txMQTT     string
	txTopic    string
	txGRPCAddr string
	txNoBLE    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ccs-tx",
		Short:        "Replay a label session through the cadence pipeline and advertise it",
		Long:         "SIGHUP clears a latched FALLBACK; SIGINT/SIGTERM stop the transmitter.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runTx,
	}

	mqttDefault := telemetry.DefaultMQTTConfig()
	cmd.Flags().StringVar(&txProfile, "profile", envOr("CCS_PROFILE", string(config.Phase1)), "parameter profile (baseline|phase1)")
	cmd.Flags().StringVar(&txConfig, "config", envOr("CCS_CONFIG", ""), "optional TOML overlay")
	cmd.Flags().StringVar(&txSession, "session", envOr("CCS_SESSION", "01"), "label session to replay")
	cmd.Flags().Int64Var(&txCadence, "cadence", envInt("CCS_CADENCE_MS", 1000), "milliseconds between classifier events")
	cmd.Flags().Int64Var(&txTick, "tick", 250, "watchdog check period in milliseconds")
	cmd.Flags().Float64Var(&txU, "u", 0.1, "uncertainty u = 1 - max(p) assigned to replayed events")
	cmd.Flags().IntVar(&txEvents, "events", 0, "stop after N events (0 runs until signalled)")
	cmd.Flags().StringVar(&txDB, "db", envOr("CCS_DB", ""), "record transitions in this sqlite database")
	cmd.Flags().StringVar(&txMQTT, "mqtt", envOr("CCS_MQTT_BROKER", ""), "publish snapshots to this broker (e.g. "+mqttDefault.Broker+")")
	cmd.Flags().StringVar(&txTopic, "topic", mqttDefault.Topic, "MQTT topic")
	cmd.Flags().StringVar(&txGRPCAddr, "grpc-addr", envOr("CCS_HEALTH_ADDR", "localhost:50061"), "gRPC health listen address (empty disables)")
	cmd.Flags().BoolVar(&txNoBLE, "no-ble", false, "run without a BLE adapter")
	return cmd
}

// attachable sinks read the snapshot of the pipeline they serve.
type attachable interface {
	SetSource(func() pipeline.Snapshot)
}

func runTx(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(txConfig, config.Profile(txProfile))
	if err != nil {
		return err
	}
	if txCadence <= 0 || txTick <= 0 {
		return fmt.Errorf("cadence and tick must be positive, got %d and %d", txCadence, txTick)
	}
	cur, err := labels.Open(txSession)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sinks    []cadence.Sink
		attached []attachable
	)

	var adv *advert.BLEAdvertiser
	if !txNoBLE {
		radio, err := advert.EnableDefault()
		if err != nil {
			return err
		}
		adv = advert.NewBLEAdvertiser(radio, advert.DefaultConfig(), nil)
		defer func() {
			if err := adv.Stop(); err != nil {
				log.Printf("ble: %v", err)
			}
		}()
		sinks = append(sinks, adv)
		attached = append(attached, adv)
	}

	if txMQTT != "" {
		mcfg := telemetry.DefaultMQTTConfig()
		mcfg.Broker = txMQTT
		mcfg.Topic = txTopic
		client, err := telemetry.Dial(mcfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub := telemetry.NewMQTTPublisher(client, mcfg, nil)
		sinks = append(sinks, pub)
		attached = append(attached, pub)
		log.Printf("publishing to %s topic %s", mcfg.Broker, mcfg.Topic)
	}

	health := telemetry.NewHealthReporter("ccs.cadence")
	sinks = append(sinks, health)
	if txGRPCAddr != "" {
		go func() {
			if err := health.Serve(ctx, txGRPCAddr); err != nil {
				log.Printf("health: %v", err)
			}
		}()
	}

	var (
		st    *store.Store
		runID string
	)
	if txDB != "" {
		st, err = store.NewStore(txDB)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer st.Close()
		run, err := st.BeginRun("live:session:"+txSession, cfg)
		if err != nil {
			return err
		}
		runID = run.RunID
		logger := store.NewTransitionLogger(st.DB(), runID, nil)
		sinks = append(sinks, logger)
		attached = append(attached, logger)
		log.Printf("recording run %s in %s", runID, txDB)
	}

	p, err := pipeline.New(cfg, sinks...)
	if err != nil {
		return err
	}
	defer p.Close()
	for _, a := range attached {
		a.SetSource(p.Snapshot)
	}

	tally := runLoop(ctx, p, &cur, adv)
	p.Flush()

	summary := tally.Summary()
	log.Printf("stopped after %d events: %d transitions, %d fallbacks, final %s",
		summary.TotalSteps, summary.Transitions, summary.Fallbacks, summary.FinalMode)
	if st != nil {
		if err := st.FinishRun(runID, summary); err != nil {
			return err
		}
	}
	return nil
}

// #region loop

// runLoop drives p until ctx is done or the event budget is spent.
func runLoop(ctx context.Context, p *pipeline.Pipeline, cur *labels.Cursor, adv *advert.BLEAdvertiser) *harness.Tally {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	events := time.NewTicker(time.Duration(txCadence) * time.Millisecond)
	defer events.Stop()
	watchdog := time.NewTicker(time.Duration(txTick) * time.Millisecond)
	defer watchdog.Stop()

	start := time.Now()
	now := func() int64 { return time.Since(start).Milliseconds() }

	tally := &harness.Tally{}
	n := 0
	log.Printf("replaying session %s (%d labels) every %dms", cur.Session().ID(), cur.Session().Len(), txCadence)

	for {
		select {
		case <-ctx.Done():
			return tally

		case <-hup:
			if p.ClearError() {
				log.Printf("fallback cleared, back to %s", p.Snapshot().Mode)
			}

		case <-watchdog.C:
			if r := p.Tick(now()); r.Changed {
				log.Printf("t=%dms watchdog: %s -> %s (%s)", r.T, r.Decision.From, r.Mode, r.Err)
			}

		case <-events.C:
			cls := taxonomy.Representative(taxonomy.Group(cur.Next()))
			r := p.IngestEvent(now(), cls.ID(), txU)
			tally.Add(harness.NewRecord(n, r))
			n++
			if r.Changed {
				log.Printf("t=%dms %s: %s -> %s ccs=%.3f interval=%dms", r.T, r.Class, r.Decision.From, r.Mode, r.CCS, r.IntervalMs)
			} else if adv != nil {
				if err := adv.Refresh(); err != nil {
					log.Printf("ble refresh: %v", err)
				}
			}
			if txEvents > 0 && n >= txEvents {
				return tally
			}
		}
	}
}

// #endregion loop

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}

// #endregion helpers
