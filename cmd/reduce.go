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
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/itrek/trekd/geo/reduce"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/geopoint"
	"github.com/itrek/trekd/types/route"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// reduceCmd reduces a point array offline.
var reduceCmd = &cobra.Command{
	Use:   "reduce [file]",
	Short: "Reduce a JSON point array",
	Long: `Reads a JSON array of points ({"latitude", "longitude", "order", "interest"}),
or a GeoJSON route, from the file or stdin, and prints the reduced points.

Examples:

  trekd reduce --strategy merge --threshold 15 trace.json
  cat trace.json | trekd reduce --strategy cluster --eps 5 --order-weight 10 --geojson
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(in)
		if err != nil {
			log.Fatalln(err)
		}
		points, err := geopoint.DecodePoints(data)
		if err != nil {
			log.Fatalln(err)
		}
		if err := points.Validate(); err != nil {
			log.Fatalln(err)
		}
		points.SortByOrder()

		config := reduceConfigFromViper()
		reducer, err := reduce.NewReducer(viper.GetString("strategy"), config)
		if err != nil {
			log.Fatalln(err)
		}
		out := reducer.Reduce(points)
		slog.Info("Reduced points", "strategy", reducer.Name(), "in", len(points), "out", len(out),
			"km", reduce.Length(points)/1000)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		var v any = out
		if viper.GetBool("geojson") {
			v = (&route.Route{Points: out}).FeatureCollection()
		}
		if err := enc.Encode(v); err != nil {
			log.Fatalln(err)
		}
	},
}

func addReduceFlags(flags *pflag.FlagSet, defaults *params.ReduceConfig) {
	flags.String("strategy", defaults.Strategy, "Reducer: none, merge or cluster")
	flags.Float64("threshold", defaults.MergeThreshold, "Merge threshold, meters")
	flags.Float64("eps", defaults.ClusterEpsMeters, "Cluster neighbourhood radius, approx. meters")
	flags.Float64("order-weight", defaults.ClusterOrderWeight, "Weight of the order index in cluster space")
	flags.Int("max-points", defaults.MaxPoints, "Maximum points accepted per trace")
}

func reduceConfigFromViper() *params.ReduceConfig {
	config := params.DefaultReduceConfig()
	config.Strategy = viper.GetString("strategy")
	config.MergeThreshold = viper.GetFloat64("threshold")
	config.ClusterEpsMeters = viper.GetFloat64("eps")
	config.ClusterOrderWeight = viper.GetFloat64("order-weight")
	config.MaxPoints = viper.GetInt("max-points")
	return config
}

func init() {
	rootCmd.AddCommand(reduceCmd)

	flags := reduceCmd.Flags()
	addReduceFlags(flags, params.DefaultReduceConfig())
	flags.Bool("geojson", false, "Print a GeoJSON FeatureCollection instead of the point array")
}
