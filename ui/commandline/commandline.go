// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains command-line UI tools for sampling runs: parsing of settings into a context,
// a progress bar and summary tables.
package commandline

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/nftqcd/lgt/pkg/measure"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).Bold(true).Padding(0, 1)
	oddRowStyle    = lipgloss.NewStyle().Padding(0, 1)
	evenRowStyle   = lipgloss.NewStyle().Padding(0, 1).Faint(true)
)

// newPlainTable creates a table with alternating row styles and right aligned names in the first column.
func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

// SummaryTable renders the summary of a run, and the mean plaquette of each chain.
func SummaryTable(title string, s measure.Summary) string {
	table := newPlainTable(true).Headers(title, "")
	table.Row("Trajectories", humanizeInt(s.NumTrajectories))
	table.Row("Chains", humanizeInt(s.NumChains))
	table.Row("Plaquette", fmt.Sprintf("%.6f ± %.6f", s.Plaquette, s.PlaquetteStdDev))
	table.Row("Acceptance", fmt.Sprintf("%.1f%%", 100*s.AcceptanceRate))
	table.Row("<exp(-ΔH)>", fmt.Sprintf("%.4f", s.ExpMinusDeltaH))
	if len(s.ChainPlaquettes) > 1 {
		for b, p := range s.ChainPlaquettes {
			table.Row(fmt.Sprintf("Plaquette (chain %d)", b), fmt.Sprintf("%.6f", p))
		}
	}
	return table.String()
}
