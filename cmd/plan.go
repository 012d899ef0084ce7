package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
)

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Validate and render an exported plan against its scenario",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan file exported by solve or rolling (.json, flat rows or stints)")
	_ = planCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(planCmd)
}

// readPlan accepts both exchange forms: a flat row array (what solve and
// rolling write) or a stint object. Rebuilding the state re-checks every
// scheduling rule against the scenario.
func readPlan(p *model.Problem, data []byte) (*schedule.State, error) {
	head := bytes.TrimLeft(data, " \t\r\n")
	if len(head) > 0 && head[0] == '{' {
		var plan schedule.Plan
		if err := json.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("parse plan: %w", err)
		}
		return schedule.FromPlan(p, &plan)
	}
	var rows []schedule.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return schedule.FromRows(p, rows)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProblem()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(planFile)
	if err != nil {
		return err
	}
	st, err := readPlan(p, data)
	if err != nil {
		color.New(color.FgRed, color.Bold).Printf("plan is invalid\n")
		return err
	}

	eval := evaluate.New(p, cfg.Weights)
	obj, comps := eval.Score(st)
	color.New(color.FgGreen, color.Bold).Printf("plan is valid\n")
	fmt.Printf("  objective  %.2f\n", obj)
	fmt.Printf("  delivered  %.1f m3\n", comps.DeliveredVolume)
	fmt.Printf("  staged     %.1f m3\n", comps.StagedVolume)
	fmt.Printf("  leftover   %.1f m3\n", comps.LeftoverVolume)

	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"machine", "role", "block", "from", "to", "volume"})
	for _, mp := range schedule.ExportPlan(st).Machines {
		if len(mp.Stints) == 0 {
			_ = table.Append([]string{mp.MachineID, mp.Role, "-", "-", "-", "-"})
			continue
		}
		m, _ := p.MachineByID(mp.MachineID)
		for _, stn := range mp.Stints {
			b, _ := p.BlockByID(stn.BlockID)
			vol := p.Rate(m, b) * float64(stn.To-stn.From+1)
			_ = table.Append([]string{
				mp.MachineID,
				mp.Role,
				stn.BlockID,
				slotLabel(p, stn.From),
				slotLabel(p, stn.To),
				fmt.Sprintf("%.1f", vol),
			})
		}
	}
	_ = table.Render()
	return nil
}

func slotLabel(p *model.Problem, s int) string {
	return fmt.Sprintf("d%d/s%d", p.Calendar.Day(s), p.Calendar.Shift(s))
}
