package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/junoproject/juno/internal/memory"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show queue and memory statistics",
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, _ *cli.Command) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.Summary(ctx)
	if err != nil {
		return fmt.Errorf("queue summary: %w", err)
	}

	fmt.Println("Task queue:")
	statuses := make([]string, 0, len(summary))
	for status := range summary {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %-8s %d\n", status, summary[status])
	}

	stats, err := memory.New(memory.Config{DB: s.DB()}).GetStats(ctx)
	if err != nil {
		return fmt.Errorf("memory stats: %w", err)
	}
	fmt.Println("\nMemory:")
	fmt.Printf("  interactions  %d\n", stats.TotalInteractions)
	fmt.Printf("  success rate  %s\n", stats.SuccessRate)
	fmt.Printf("  avg duration  %dms\n", stats.AvgDurationMS)
	if len(stats.TopModels) > 0 {
		fmt.Println("  top models:")
		models := make([]string, 0, len(stats.TopModels))
		for m := range stats.TopModels {
			models = append(models, m)
		}
		sort.Slice(models, func(i, j int) bool {
			return stats.TopModels[models[i]] > stats.TopModels[models[j]]
		})
		for _, m := range models {
			fmt.Printf("    %-20s %d\n", m, stats.TopModels[m])
		}
	}
	return nil
}
