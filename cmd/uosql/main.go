package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rnbguy/uosql-server/pkg/client"
	"github.com/rnbguy/uosql-server/pkg/ui"
)

type configuration struct {
	Addr     string
	Username string
	Password string
}

func main() {
	config := parseArguments()

	conn, err := client.Connect(config.Addr, config.Username, config.Password)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", config.Addr, err)
	}
	defer conn.Close()

	showBanner(conn)

	model := ui.NewModel(conn)
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running program: %v\n", err)
		os.Exit(1)
	}
}

func parseArguments() configuration {
	var config configuration

	flag.StringVar(&config.Addr, "addr", "127.0.0.1:4242", "Server address")
	flag.StringVar(&config.Username, "user", "elena", "Username")
	flag.StringVar(&config.Password, "password", "prakt", "Password")

	flag.Parse()

	return config
}

// showBanner prints the server greeting before the alternate screen takes
// over.
func showBanner(conn *client.Connection) {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Println(style.Render(fmt.Sprintf("%s (protocol v%d)", conn.Message(), conn.Version())))
}
