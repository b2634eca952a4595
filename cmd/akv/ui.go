package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"akiverse/internal/arcade"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func renderTransition(title string, m arcade.ArcadeMachine) {
	accent.Printf("\n== %s %s ==\n", title, m.ID)
	fmt.Printf("Game:        %s\n", m.Game)
	fmt.Printf("State:       %s\n", colorizeState(m.State))
	fmt.Printf("Energy:      %d/%d\n", m.Energy, m.MaxEnergy)
	fmt.Printf("Game center: %s\n", placement(m))
	fmt.Printf("Auto renew:  %t\n", m.AutoRenewLease)
	fmt.Println()
}

func renderBatch(title string, machines []arcade.ArcadeMachine) {
	accent.Printf("\n== %s (%d) ==\n", title, len(machines))
	fmt.Printf("%-38s %-18s %-20s\n", "ID", "GAME", "STATE")
	for _, m := range machines {
		fmt.Printf("%-38s %-18s %-20s\n", truncate(m.ID, 38), truncate(m.Game, 18), colorizeState(m.State))
	}
	fmt.Println()
}

func renderDismantle(machineID string, out arcade.DismantleResult) {
	accent.Printf("\n== DISMANTLED %s ==\n", machineID)
	fmt.Printf("%-14s %-20s\n", "PART", "GRADE")
	fmt.Printf("%-14s %-20s\n", "ROM", out.Rom.SubCategory)
	fmt.Printf("%-14s %-20s %s\n", "UPPER CABINET", out.UpperCabinet.SubCategory, gradeUpBadge(out.UpperCabinetGradeUp))
	fmt.Printf("%-14s %-20s %s\n", "LOWER CABINET", out.LowerCabinet.SubCategory, gradeUpBadge(out.LowerCabinetGradeUp))
	fmt.Println()
}

func renderPlayable(game string, machines []arcade.ArcadeMachine) {
	accent.Printf("\n== PLAYABLE %s ==\n", game)
	if len(machines) == 0 {
		printInfo("No arcade machines available right now.")
		return
	}
	fmt.Printf("%-38s %-10s %-24s %s\n", "ID", "ENERGY", "GAME CENTER", "FEVER")
	for _, m := range machines {
		fever := "-"
		if m.FeverSparkRemain != nil {
			fever = fmt.Sprintf("%d", *m.FeverSparkRemain)
		}
		fmt.Printf("%-38s %-10s %-24s %s\n",
			truncate(m.ID, 38),
			fmt.Sprintf("%d/%d", m.Energy, m.MaxEnergy),
			truncate(placement(m), 24),
			fever,
		)
	}
	fmt.Println()
}

func placement(m arcade.ArcadeMachine) string {
	if m.GameCenterID == nil {
		return "-"
	}
	if m.Position == nil {
		return *m.GameCenterID
	}
	return fmt.Sprintf("%s #%d", *m.GameCenterID, *m.Position)
}

func gradeUpBadge(up bool) string {
	if up {
		return success.Sprint("GRADE UP")
	}
	return ""
}

func colorizeState(s arcade.CustodyState) string {
	switch s {
	case arcade.CustodyInAkiverse:
		return success.Sprint(s)
	case arcade.CustodyMovingToWallet, arcade.CustodyMovingToAkiverse:
		return warn.Sprint(s)
	case arcade.CustodyBurned:
		return danger.Sprint(s)
	default:
		return neutral.Sprint(s)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
