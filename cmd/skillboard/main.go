// Command skillboard shows a running skillwatch's board in the terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okian/skillwatch/internal/tui"
)

func main() {
	addr := flag.String("addr", "http://localhost:9080", "skillwatch base URL")
	interval := flag.Duration("interval", tui.DefaultPollInterval, "board polling interval")
	flag.Parse()

	if *interval < time.Second {
		fmt.Fprintln(os.Stderr, "interval must be at least 1s")
		os.Exit(2)
	}

	model := tui.New(tui.NewClient(*addr, nil), tui.WithPollInterval(*interval))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running board: %v\n", err)
		os.Exit(1)
	}
}
