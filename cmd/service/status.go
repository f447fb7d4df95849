package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"grid-keeper/cmd/root"
	"grid-keeper/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status [service name]",
	Short: "Show port, tier, run and install state of the services",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := collectStatus(cmd.Context(), args)
		if err != nil {
			return &root.ExitError{Code: 1, Err: err}
		}
		if printed, err := printStructured(os.Stdout, statusOutput, details); err != nil {
			return &root.ExitError{Code: 1, Err: err}
		} else if !printed {
			printStatus(os.Stdout, details)
		}
		return nil
	},
}

func collectStatus(ctx context.Context, args []string) ([]models.ServiceDetail, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if remote {
		return remoteStatus(ctx, name)
	}
	manager, err := newManager()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return manager.GetServices(), nil
	}
	d, err := manager.GetService(name)
	if err != nil {
		return nil, err
	}
	return []models.ServiceDetail{d}, nil
}

func printStatus(w io.Writer, details []models.ServiceDetail) {
	if len(details) == 0 {
		fmt.Fprintln(w, "No services configured")
		return
	}
	t := newTable(w, "SERVICE", "PORT", "TIER", "STATUS", "PID", "INSTALL", "START COMMAND")
	for _, d := range details {
		pid := ""
		if d.Pid > 0 {
			pid = fmt.Sprint(d.Pid)
		}
		t.AppendRow(table.Row{d.Name, d.Port, d.Tier, colorState(string(d.Status)), pid, colorState(string(d.Install)), d.Spec.Start.String()})
	}
	t.Render()
}

func init() {
	statusCmd.Flags().BoolVar(&remote, "remote", false, "Ask the running keeper server")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", outputTable, "Output format (table/json/yaml)")
	root.RootCmd.AddCommand(statusCmd)
	statusCmd.Example = `  grid-keeper status
  grid-keeper status rabbitmq -o yaml`
}
