package main

import (
	"bytes"
	"fmt"

	"github.com/dimiro1/banner"
	"github.com/spf13/cobra"
)

// Injected at build time via -ldflags "-X main.version=...".
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kokoroctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tpl := fmt.Sprintf("{{ .Title \"KOKOROCTL\" \"\" 0 }}\nVersion: %s\nGo: {{ .GoVersion }} {{ .GOOS }}/{{ .GOARCH }}\n", version)
			banner.Init(cmd.OutOrStdout(), true, false, bytes.NewBufferString(tpl))
		},
	}
}
