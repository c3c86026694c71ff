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
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/roamtrack/tripd/api"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/stream"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/spf13/cobra"
)

var optSegmentDevice string
var optSegmentGeoJSON bool
var optDwellRadius float64
var optMinDwell time.Duration

// segmentCmd represents the segment command
var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Partition a fix history into dwells and drives",
	Long: `

Reads annotated fixes as JSON lines from stdin, partitions the history
into dwell intervals and drive segments, and writes the result to
stdout as JSON (or GeoJSON with --geojson).

Examples:

  cat fixes.ndjson | tripd segment --device dev-1
  cat fixes.ndjson | tripd segment --device dev-1 --geojson > segments.geojson
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		fixesCh, errs := stream.NDJSON[fix.Annotated](ctx, os.Stdin)
		fixes := stream.Collect(ctx, fixesCh)
		if err := <-errs; err != nil {
			log.Fatalln(err)
		}
		slog.Info("Segmenting", "device", optSegmentDevice, "fixes", len(fixes))

		cfg := &params.SegmenterConfig{
			DwellRadiusMeters: optDwellRadius,
			MinDwellDuration:  optMinDwell,
		}
		dwells, drives, err := api.Segment(optSegmentDevice, fixes, cfg)
		if err != nil {
			log.Fatalln(err)
		}

		enc := json.NewEncoder(os.Stdout)
		if optSegmentGeoJSON {
			fc := geojson.NewFeatureCollection()
			for i := range dwells {
				fc.Append(dwells[i].Feature())
			}
			for i := range drives {
				fc.Append(drives[i].Feature())
			}
			if err := enc.Encode(fc); err != nil {
				log.Fatalln(err)
			}
			return
		}
		if err := enc.Encode(map[string]any{
			"dwells": dwells,
			"drives": drives,
		}); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	defaults := params.DefaultSegmenterConfig
	pFlags := segmentCmd.PersistentFlags()
	pFlags.StringVar(&optSegmentDevice, "device", "", "Device ID to stamp on output segments")
	pFlags.BoolVar(&optSegmentGeoJSON, "geojson", false, "Emit a GeoJSON FeatureCollection")
	pFlags.Float64Var(&optDwellRadius, "dwell-radius", defaults.DwellRadiusMeters, "Dwell cluster radius in meters")
	pFlags.DurationVar(&optMinDwell, "min-dwell", defaults.MinDwellDuration, "Minimum dwell duration")
}
