// Package utils contains display helpers for the trail daemon.
package utils

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	taglineStyle = lipgloss.NewStyle().Faint(true)
)

// DisplayLogo prints the trail logo with version information.
func DisplayLogo(version string) {
	fmt.Println()
	fmt.Println(logoStyle.Render(` ░░░░░░░░░░░░░░░░░░░░
 ░▀█▀░█▀▄░█▀█░▀█▀░█░░
 ░░█░░█▀▄░█▀█░░█░░█░░
 ░░▀░░▀░▀░▀░▀░▀▀▀░▀▀▀
 ░░░░░░░░░░░░░░░░░░░░`))
	fmt.Printf("\n Trail v%s - Asset and payment registry\n", version)
	fmt.Println(taglineStyle.Render(" Batched, pinned and anchored on chain"))
	fmt.Println()
}
