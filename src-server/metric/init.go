package metric

import (
	"errors"
	"log/slog"
	"time"

	"regbridge/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// Registers c with the default registry; a collector that is already there
// counts as registered.
func register(name string, c prometheus.Collector) bool {
	if err := prometheus.Register(c); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegistered) {
			slog.Error("can't register metric", "name", name, "error", err)
			return false
		}
	}
	slog.Debug("metric registered", "name", name)
	return true
}

func unregister(name string, c prometheus.Collector) {
	switch prometheus.Unregister(c) {
	case true:
		slog.Debug("metric unregistered", "name", name)
	case false:
		slog.Warn("metric not registered", "name", name)
	}
}

func newGauge(name, help string) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if register(name, gauge) {
		gauge.Set(0)
	}
	return gauge
}

// Sets the gauge to each latency pushed on ch, falls back to 0 when nothing
// arrived for clearInterval.
func pushedGauge(shutdown <-chan struct{}, name, help string, ch <-chan float64, clearInterval time.Duration) prometheus.Gauge {
	gauge := newGauge(name, help)
	go func() {
		clearTicker := time.NewTicker(clearInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-shutdown:
				unregister(name, gauge)
				return
			case latency := <-ch:
				gauge.Set(latency)
				clearTicker.Reset(clearInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
	return gauge
}

// Sets the gauge to whatever sample returns every interval.
func polledGauge(shutdown <-chan struct{}, name, help string, interval time.Duration, sample func() (float64, error)) prometheus.Gauge {
	gauge := newGauge(name, help)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				unregister(name, gauge)
				return
			case <-ticker.C:
				value, err := sample()
				if err != nil {
					slog.Error("can't sample metric", "name", name, "error", err)
					continue
				}
				gauge.Set(value)
			}
		}
	}()
	return gauge
}

func counters(as *utils.AppState) {
	register("regbridge_registrations_total", as.MetricChans.Registrations)
	register("regbridge_decisions_total", as.MetricChans.Decisions)
	go func() {
		<-as.CreateGracefulShutdownChan()
		unregister("regbridge_registrations_total", as.MetricChans.Registrations)
		unregister("regbridge_decisions_total", as.MetricChans.Decisions)
	}()
}

func Init(as *utils.AppState) {
	tickerInterval := as.Config.GetMetricCollectionInterval()
	clearTickerInterval := tickerInterval * 2
	shutdown := as.CreateGracefulShutdownChan()

	counters(as)

	polledGauge(shutdown,
		"regbridge_database_empty_read_microsec",
		"The latency of an empty database read in microseconds",
		tickerInterval,
		func() (float64, error) {
			latency, err := database(as.BunDB)
			return float64(latency.Microseconds()), err
		},
	)
	pushedGauge(shutdown,
		"regbridge_cooldown_read_microsec",
		"The latency of a cooldown store read in microseconds",
		as.MetricChans.DatabaseRead, clearTickerInterval,
	)
	pushedGauge(shutdown,
		"regbridge_cooldown_write_microsec",
		"The latency of a cooldown store write in microseconds",
		as.MetricChans.DatabaseWrite, clearTickerInterval,
	)
	pushedGauge(shutdown,
		"regbridge_discord_send_message_microsec",
		"The latency of a discord message send in microseconds",
		as.MetricChans.DiscordSendMessage, clearTickerInterval,
	)
	polledGauge(shutdown,
		"regbridge_discord_heartbeat_latency_microsec",
		"The latency of a discord heartbeat in microseconds",
		tickerInterval,
		func() (float64, error) {
			return float64(as.DgSession.HeartbeatLatency().Microseconds()), nil
		},
	)
}
