package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grid-keeper/internal/config"
	"grid-keeper/services"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// signalContext is cancelled by Ctrl-C or SIGTERM; started children are not affected.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newManager() (*services.ServiceManager, error) {
	return services.NewServiceManager(config.Get())
}

// printStructured writes v as json or yaml, reporting false for the table format.
func printStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	case outputTable, "":
		return false, nil
	}
	return true, fmt.Errorf("unknown output format '%s' (table/json/yaml)", format)
}

func newTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(h)
	}
	t.AppendHeader(row)
	return t
}

func colorState(state string) string {
	switch state {
	case string(services.StateStarted), string(services.StopStopped), "running", "installed":
		return text.FgGreen.Sprint(state)
	case string(services.StateFailed), string(services.StopNotStoppable):
		return text.FgRed.Sprint(state)
	case string(services.StateSkipped):
		return text.FgYellow.Sprint(state)
	}
	return state
}

func printBootstrapReport(w io.Writer, report *services.BootstrapReport) {
	t := newTable(w, "SERVICE", "TIER", "STATE", "FIRST RUN", "HOOKS", "PID", "ERROR")
	for _, o := range report.Services {
		pid := ""
		if o.Pid > 0 {
			pid = fmt.Sprint(o.Pid)
		}
		t.AppendRow(table.Row{o.Name, o.Tier, colorState(string(o.State)), o.FirstRun, o.HooksRun, pid, o.Error})
	}
	t.Render()
}

func printShutdownReport(w io.Writer, report *services.ShutdownReport) {
	t := newTable(w, "SERVICE", "PORT", "STATE", "PID", "FOUND BY", "ERROR")
	for _, o := range report.Services {
		pid := ""
		if o.Pid > 0 {
			pid = fmt.Sprint(o.Pid)
		}
		t.AppendRow(table.Row{o.Name, o.Port, colorState(string(o.State)), pid, o.Source, o.Error})
	}
	t.Render()
}
