// Command meshpeer is a reference media-producing client: it joins a
// meshsignal hub and negotiates a real WebRTC data channel with every
// peer it meets there, to exercise the hub's wire protocol end to end
// (spec.md §1's "media-producing client implemented with a streaming
// toolkit", made concrete).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhead/meshsignal/pkg/mediapeer"
)

func main() {
	var url string

	cmd := &cobra.Command{
		Use:   "meshpeer",
		Short: "Reference WebRTC client for a meshsignal hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			client := mediapeer.New(url, logger)
			defer client.Close()

			selfCh := make(chan uint64, 1)
			if err := client.Connect(func(id uint64) { selfCh <- id }); err != nil {
				return err
			}

			self := <-selfCh
			logger.Info("joined mesh", "self", self)

			select {}
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:4000/", "signalling hub WebSocket URL")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
