package logs

import (
	"fmt"

	"github.com/spf13/cobra"

	"grid-keeper/cmd/root"
	"grid-keeper/internal/config"
	"grid-keeper/services"
)

var lines int

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().IntVarP(&lines, "lines", "n", services.DefaultTailLines, "Number of trailing lines to show")
}

var Cmd = &cobra.Command{
	Use:   "logs <service name>",
	Short: "Show the end of a service log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := services.NewServiceManager(config.Get())
		if err != nil {
			return &root.ExitError{Code: 1, Err: err}
		}
		path, tail, err := manager.TailLog(args[0], lines)
		if err != nil {
			return &root.ExitError{Code: 1, Err: err}
		}
		fmt.Printf("==> %s <==\n", path)
		for _, line := range tail {
			fmt.Println(line)
		}
		return nil
	},
}
