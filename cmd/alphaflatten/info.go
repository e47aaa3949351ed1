package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixelworldai/alphaflatten/layerio"
)

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>...",
		Short: "Print size, format and layers of layer files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				info, err := layerio.Inspect(path)
				if err != nil {
					a.log.WithError(err).WithField("path", path).Error("Cannot inspect file")
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: %s %dx%d\n", info.Path, info.Format, info.Width, info.Height)
				if info.Compression != "" {
					fmt.Fprintf(out, "  compression: %s\n", info.Compression)
				}
				if len(info.Channels) > 0 {
					fmt.Fprintf(out, "  channels: %s\n", strings.Join(info.Channels, ", "))
				}
				if len(info.Layers) > 0 {
					names := make([]string, len(info.Layers))
					for i, l := range info.Layers {
						if l == "" {
							l = "(root)"
						}
						names[i] = l
					}
					fmt.Fprintf(out, "  layers: %s\n", strings.Join(names, ", "))
				}
				if info.Owner != "" {
					fmt.Fprintf(out, "  owner: %s\n", info.Owner)
				}
				if info.Comments != "" {
					fmt.Fprintf(out, "  comments: %s\n", info.Comments)
				}
				if !info.CapDate.IsZero() {
					fmt.Fprintf(out, "  captured: %s\n", info.CapDate.Format(time.RFC3339))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be read", failed, len(args))
			}
			return nil
		},
	}
}
