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
	"log"
	"log/slog"
	"path/filepath"

	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/daemon/webd"
	"github.com/itrek/trekd/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves the hiking routes API, the /feed websocket of public routes,
and Prometheus metrics at /metrics.

Mail goes out over SMTP when --smtp-host is set, and is only logged otherwise.
Images are stored in S3 when --s3-bucket is set, and under <datadir>/images otherwise.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config := webDaemonConfigFromViper()
		server, err := webd.NewWebDaemon(config, nil)
		if err != nil {
			log.Fatalln(err)
		}
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			sig := <-common.Interrupted()
			slog.Warn("Received signal, shutting down", "signal", sig)
			cancel()
		}()
		if err := server.Run(ctx); err != nil {
			log.Fatalln(err)
		}
	},
}

func webDaemonConfigFromViper() *params.WebDaemonConfig {
	config := params.DefaultWebDaemonConfig()
	config.DataDir = dataDir()
	config.Store.DataDir = config.DataDir
	config.Image.Dir = filepath.Join(config.DataDir, params.ImagesSubdir)

	config.Network = viper.GetString("network")
	config.Address = viper.GetString("address")
	config.AllowedOrigin = viper.GetString("allowed-origin")
	config.PublicURL = viper.GetString("public-url")
	config.TokenSecret = viper.GetString("token-secret")

	config.Reduce = reduceConfigFromViper()

	config.Mail.Host = viper.GetString("smtp-host")
	config.Mail.Port = viper.GetInt("smtp-port")
	config.Mail.User = viper.GetString("smtp-user")
	config.Mail.Password = viper.GetString("smtp-password")
	config.Mail.From = viper.GetString("mail-from")
	config.Mail.Workers = viper.GetInt("mail-workers")

	config.Image.S3Bucket = viper.GetString("s3-bucket")
	config.Image.S3Region = viper.GetString("s3-region")
	return config
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	flags := webdCmd.Flags()
	flags.String("network", defaults.Network, "Network to listen on (tcp, tcp4, tcp6, unix)")
	flags.String("address", defaults.Address, "HTTP address to listen on")
	flags.String("allowed-origin", defaults.AllowedOrigin, "Access-Control-Allow-Origin value")
	flags.String("public-url", defaults.PublicURL, "Externally visible base URL, used in email links")
	flags.String("token-secret", "", "Secret signing email links (random per process if empty)")

	addReduceFlags(flags, defaults.Reduce)

	flags.String("smtp-host", defaults.Mail.Host, "SMTP host; mail is only logged if empty")
	flags.Int("smtp-port", defaults.Mail.Port, "SMTP port")
	flags.String("smtp-user", defaults.Mail.User, "SMTP user")
	flags.String("smtp-password", "", "SMTP password")
	flags.String("mail-from", defaults.Mail.From, "From address of outgoing mail")
	flags.Int("mail-workers", defaults.Mail.Workers, "Concurrent mail deliveries")

	flags.String("s3-bucket", defaults.Image.S3Bucket, "S3 bucket for images; local disk if empty")
	flags.String("s3-region", defaults.Image.S3Region, "S3 region")
}
