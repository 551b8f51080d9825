package commands

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(w io.Writer, verbosity int, cfg *am.Config) {
	red := pterm.NewStyle(pterm.FgRed, pterm.Bold)
	info := version.Get()

	fmt.Fprintln(w)
	fmt.Fprintln(w, red.Sprint("   ▀█▀ █░█ █▀█ █▀▀ ▄▀█ ▀█▀ █▄▄ █▀█ █ █▀▀ █▀▀"))
	fmt.Fprintln(w, red.Sprint("   ░█░ █▀█ █▀▄ ██▄ █▀█ ░█░ █▄█ █▀▄ █ ██▄ █▀░"))
	fmt.Fprintln(w)

	rows := [][]string{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Built", info.BuildTime},
		{"Verbosity", logger.LevelName(verbosity)},
		{"Listening", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)},
		{"Provider", cfg.Generator.Provider},
		{"Blueprint", cfg.Pipeline.Blueprint},
		{"Parallelism", fmt.Sprintf("%d", cfg.Pipeline.Parallelism)},
		{"Output", cfg.Render.Format},
	}
	if cfg.Metrics.Enabled {
		rows = append(rows, []string{"Metrics", cfg.Metrics.Path})
	}
	_ = pterm.DefaultTable.WithData(rows).WithWriter(w).Render()

	fmt.Fprintf(w, "\n%s\n\n", pterm.FgBlue.Sprint("Press Ctrl+C to stop"))
}
