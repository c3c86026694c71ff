/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/roamtrack/tripd/api"
	"github.com/roamtrack/tripd/metrics/influxdb"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/stream"
	"github.com/roamtrack/tripd/types/trip"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var optExportInflux bool

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process driving events from stdin stream",
	Long: `

Events from mixed devices ARE supported.

Events are decoded as JSON lines from stdin and routed by device.
Each device gets its own pipeline worker, so devices process in
parallel while each device's events stay strictly in order. Graceful
shutdown matters for state integrity; be patient.

Examples:

  zcat events.ndjson.gz | tripd process -v
  cat events.ndjson | tripd process --influx
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			sig := <-interrupt
			slog.Warn("Received signal", "signal", sig)
			cancel()
		}()

		meter := stream.NewTickMeter(10 * time.Second)
		defer meter.Stop()

		workersWG := new(sync.WaitGroup)
		inputs := map[string]chan trip.DrivingEvent{}
		closedTrips := 0
		deltaMu := sync.Mutex{}
		influxBatch := []trip.Delta{}

		// One worker per device: parallel across devices, serial within.
		startWorker := func(deviceID string) chan trip.DrivingEvent {
			in := make(chan trip.DrivingEvent, params.DefaultChannelCap)
			d := api.NewDevice(deviceID, nil)
			out, err := d.ProcessEvents(ctx, in)
			if err != nil {
				log.Fatalln(err)
			}
			workersWG.Add(1)
			go func() {
				defer workersWG.Done()
				for delta := range out {
					deltaMu.Lock()
					if delta.Trip.State == trip.StateClosed {
						closedTrips++
					}
					if optExportInflux {
						influxBatch = append(influxBatch, delta)
						if len(influxBatch) >= params.DefaultBatchSize {
							flush := influxBatch
							influxBatch = nil
							go func() {
								if err := influxdb.ExportTripDeltas(flush); err != nil {
									slog.Error("Failed to export trip deltas", "error", err)
								}
							}()
						}
					}
					deltaMu.Unlock()
				}
				if err := d.Close(); err != nil {
					slog.Error("Failed to close device", "device", deviceID, "error", err)
				}
			}()
			return in
		}

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
		n := 0
		for scanner.Scan() {
			if ctx.Err() != nil {
				break
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			ev := trip.DrivingEvent{}
			if err := json.Unmarshal(line, &ev); err != nil {
				slog.Error("Failed to unmarshal event", "error", err)
				continue
			}
			deviceID := gjson.GetBytes(line, "device_id").String()
			in, ok := inputs[deviceID]
			if !ok {
				in = startWorker(deviceID)
				inputs[deviceID] = in
				meter.AddDevice(deviceID)
			}
			meter.Mark(ev.ClientTime, len(line))
			select {
			case <-ctx.Done():
			case in <- ev:
				n++
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("Failed to scan stdin", "error", err)
		}

		for _, in := range inputs {
			close(in)
		}
		slog.Info("Waiting on device workers")
		workersWG.Wait()

		if optExportInflux && len(influxBatch) > 0 {
			if err := influxdb.ExportTripDeltas(influxBatch); err != nil {
				slog.Error("Failed to export trip deltas", "error", err)
			}
		}

		slog.Info("Process done",
			"events", humanize.Comma(int64(n)),
			"devices", len(inputs),
			"trips.closed", closedTrips)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.PersistentFlags().BoolVar(&optExportInflux, "influx", false,
		"Export trip deltas to InfluxDB (requires INFLUXDB_* env)")
}
