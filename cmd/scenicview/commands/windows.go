package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/window"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List stage windows and their popups",
	Long: `List the top-level windows that agents expose as stages, each followed by
the popup windows it owns.

This command connects to the X11 server once and prints what an agent
would publish at that moment.`,
	Example: `  # List every stage in table format (default)
  scenicview windows

  # List the stages of one process in JSON format
  scenicview windows --pid 4242 --format json`,
	RunE: runWindows,
}

var (
	windowsFormat string
	windowsPID    int
)

func init() {
	rootCmd.AddCommand(windowsCmd)

	windowsCmd.Flags().StringVarP(&windowsFormat, "format", "f", "table", "output format (table or json)")
	windowsCmd.Flags().IntVar(&windowsPID, "pid", 0, "show only the windows of this process")
}

// stageWindows is one stage and the flattened popup forest it owns.
type stageWindows struct {
	Window *model.WindowInfo   `json:"window"`
	Popups []model.PopupWindow `json:"popups"`
}

func runWindows(cmd *cobra.Command, args []string) error {
	backend, err := window.NewX11Backend()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer backend.Close()

	windows, err := backend.ListWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	stages := collectStages(windows, windowsPID)
	switch windowsFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(stages)
	case "table":
		return printStagesTable(cmd.OutOrStdout(), stages)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", windowsFormat)
	}
}

// collectStages returns the non-popup windows with a known process,
// restricted to pid when it is positive.
func collectStages(windows []*model.WindowInfo, pid int) []stageWindows {
	stages := make([]stageWindows, 0)
	for _, w := range windows {
		if w.PID <= 0 || window.IsPopup(w) || (pid > 0 && w.PID != pid) {
			continue
		}
		forest := window.BuildForest(w.ID, windows, window.IsPopup)
		stages = append(stages, stageWindows{Window: w, Popups: forest.Flatten()})
	}
	return stages
}

func printStagesTable(out io.Writer, stages []stageWindows) error {
	if len(stages) == 0 {
		fmt.Fprintln(out, "No stage windows found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "WINDOW\tPID\tGEOMETRY\tTITLE")
	fmt.Fprintln(w, "------\t---\t--------\t-----")

	for _, s := range stages {
		g := s.Window.Geometry
		fmt.Fprintf(w, "0x%x\t%d\t%dx%d+%d+%d\t%s\n",
			s.Window.ID, s.Window.PID, g.Width, g.Height, g.X, g.Y, s.Window.Title)
		for _, p := range s.Popups {
			indent := strings.Repeat("  ", p.Depth+1)
			fmt.Fprintf(w, "%s0x%x\t\t\t%s\n", indent, p.ID, p.Title)
		}
	}
	return nil
}
