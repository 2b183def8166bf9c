package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/junoproject/juno/internal/config"
	"github.com/junoproject/juno/internal/store"
)

// NewTasksCommand returns the tasks subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect and manage the background task queue",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tasks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (pending, running, done, failed)",
					},
				},
				Action: runTasksList,
			},
			{
				Name:      "add",
				Usage:     "Queue a task",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
					&cli.StringFlag{Name: "type", Value: "custom", Usage: "Task type"},
					&cli.StringFlag{Name: "priority", Value: "normal", Usage: "Priority name"},
				},
				Action: runTasksAdd,
			},
			{
				Name:      "show",
				Usage:     "Show task details and its log",
				ArgsUsage: "<task_id>",
				Action:    runTasksShow,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a task",
				ArgsUsage: "<task_id>",
				Action:    runTasksCancel,
			},
		},
		DefaultCommand: "list",
	}
}

func openStore() (*store.Store, error) {
	return store.Open(config.DBPath())
}

func runTasksList(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.GetAll(ctx, store.Status(cmd.String("status")), 100)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tPRIORITY\tTITLE")
	for _, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Type, t.PriorityName, t.Title)
	}
	return w.Flush()
}

func runTasksAdd(ctx context.Context, cmd *cli.Command) error {
	title := cmd.Args().First()
	if title == "" {
		return fmt.Errorf("usage: juno tasks add <title>")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.Add(ctx, store.AddTask{
		Title:       title,
		Description: cmd.String("description"),
		Type:        store.TaskType(cmd.String("type")),
		Priority:    cmd.String("priority"),
	})
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	fmt.Printf("Task %d queued.\n", id)
	return nil
}

func runTasksShow(ctx context.Context, cmd *cli.Command) error {
	id, err := taskIDArg(cmd)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	fmt.Printf("ID:        %d\n", t.ID)
	fmt.Printf("Title:     %s\n", t.Title)
	fmt.Printf("Status:    %s\n", t.Status)
	fmt.Printf("Type:      %s\n", t.Type)
	fmt.Printf("Priority:  %s\n", t.PriorityName)
	if t.Description != "" {
		fmt.Printf("Details:   %s\n", t.Description)
	}
	if t.ResultSummary != "" {
		fmt.Printf("Result:    %s\n", t.ResultSummary)
	}
	if t.RetryCount > 0 {
		fmt.Printf("Retries:   %d/%d\n", t.RetryCount, t.MaxRetries)
	}

	log, err := s.TaskLog(ctx, id)
	if err != nil {
		return fmt.Errorf("task log: %w", err)
	}
	if len(log) > 0 {
		fmt.Println("\nLog:")
		for _, entry := range log {
			fmt.Printf("  %s  %s", entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Event)
			if entry.Detail != "" {
				fmt.Printf("  (%s)", entry.Detail)
			}
			fmt.Println()
		}
	}
	return nil
}

func runTasksCancel(ctx context.Context, cmd *cli.Command) error {
	id, err := taskIDArg(cmd)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Cancel(ctx, id, "Cancelled from CLI"); err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	fmt.Printf("Task %d cancelled.\n", id)
	return nil
}

func taskIDArg(cmd *cli.Command) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("a task id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
