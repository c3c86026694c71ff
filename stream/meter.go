package stream

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/roamtrack/tripd/common"
)

// TickMeter logs ingestion throughput at an interval while a long
// scan runs. Mark it per element; Stop it when the scan ends.
type TickMeter struct {
	label      time.Time // any value, eg the event's client time
	interval   time.Duration
	started    time.Time
	ticker     *time.Ticker
	nn         atomic.Uint64
	devices    []string
	reg        metrics.Registry
	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
}

func NewTickMeter(interval time.Duration) *TickMeter {
	// Won't work without this global setting.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	tm := &TickMeter{
		reg:        reg,
		interval:   interval,
		started:    time.Now(),
		nn:         atomic.Uint64{},
		devices:    []string{},
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
	}

	if err := reg.Register("count.count", tm.count); err != nil {
		panic(err)
	}
	if err := reg.Register("size.count", tm.size); err != nil {
		panic(err)
	}
	if err := reg.Register("line.meter", tm.countMeter); err != nil {
		panic(err)
	}
	if err := reg.Register("size.meter", tm.sizeMeter); err != nil {
		panic(err)
	}
	go tm.run()
	return tm
}

func (tm *TickMeter) Mark(label time.Time, size int) {
	tm.label = label
	tm.nn.Add(1)
	tm.count.Inc(1)
	tm.size.Inc(int64(size))
	tm.countMeter.Mark(1)
	tm.sizeMeter.Mark(int64(size))
}

// AddDevice notes a device seen in the scan, for the log line.
func (tm *TickMeter) AddDevice(deviceID string) {
	for _, d := range tm.devices {
		if d == deviceID {
			return
		}
	}
	tm.devices = append(tm.devices, deviceID)
}

func (tm *TickMeter) run() {
	tm.ticker = time.NewTicker(tm.interval)
	for range tm.ticker.C {
		tm.log()
	}
}

func (tm *TickMeter) log() {
	countSnap := tm.countMeter.Snapshot()
	sizeSnap := tm.sizeMeter.Snapshot()

	slog.Info("Read events", "n", humanize.Comma(countSnap.Count()),
		"devices", strings.Join(tm.devices, ","),
		"read.last", tm.label.Format(time.DateTime),
		"eps", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(tm.started).Round(time.Second))
}

func (tm *TickMeter) Stop() {
	if tm == nil || tm.ticker == nil {
		return
	}
	tm.ticker.Stop()
	tm.countMeter.Stop()
	tm.sizeMeter.Stop()
}
