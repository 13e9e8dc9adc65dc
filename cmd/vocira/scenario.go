package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vocira/vocira/internal/classify"
	"github.com/vocira/vocira/internal/scenario"
)

// scenarioCmd groups the scenario authoring tools
func scenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Validate and inspect scenario files",
	}
	cmd.AddCommand(scenarioValidateCmd(), scenarioShowCmd())
	return cmd
}

func scenarioValidateCmd() *cobra.Command {
	var checkAudio bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a scenario file",
		Long: `Validate a scenario file: step graph integrity, intent names,
terminal reachability and, with --audio, prompt file existence under the
configured prompts directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			promptsDir := ""
			if checkAudio {
				promptsDir = cfg.Paths.PromptsDir
			}

			scn, err := scenario.Load(args[0], promptsDir)
			if err != nil {
				return err
			}

			fmt.Printf("%s: ok (%d steps, entry %q)\n", args[0], len(scn.StepIDs()), scn.Entry())
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkAudio, "audio", false, "also check that prompt audio files exist")
	return cmd
}

func scenarioShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Show a scenario's steps and routing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scn, err := scenario.Load(args[0], "")
			if err != nil {
				return err
			}

			fmt.Printf("Scenario %s (theme %s)\n", scn.ID(), scn.Theme())
			fmt.Printf("  Agent:   %s, %s\n", scn.AgentName(), scn.Company())
			fmt.Printf("  Rail:    %v\n", scn.Rail())
			fmt.Println()

			table := scn.RoutingTable()

			ids := scn.StepIDs()
			sort.Strings(ids)
			for _, id := range ids {
				step, _ := scn.Step(id)

				fmt.Printf("step %s\n", id)
				switch step.Audio.Source {
				case scenario.SourcePreRecorded:
					fmt.Printf("  audio:    %s\n", step.Audio.Path)
				case scenario.SourceTTS:
					fmt.Printf("  audio:    tts %q\n", step.Audio.Text)
				default:
					fmt.Println("  audio:    none")
				}
				if step.Terminal {
					fmt.Printf("  terminal: %s\n", step.Result)
					if step.LeadsGate {
						fmt.Println("  leads gate against qualification threshold")
					}
					for _, act := range step.Actions {
						fmt.Printf("  action:   %s\n", act.Type)
					}
					fmt.Println()
					continue
				}
				if step.QualificationWeight > 0 {
					fmt.Printf("  weight:   %.0f\n", step.QualificationWeight)
				}
				if step.BargeIn {
					fmt.Println("  barge-in: enabled")
				}
				if step.MaxAutonomousTurns > 0 {
					fmt.Printf("  autonomy: %d objection turns\n", step.MaxAutonomousTurns)
				}

				routes := table[id]
				intents := make([]string, 0, len(routes))
				for intent := range routes {
					intents = append(intents, string(intent))
				}
				sort.Strings(intents)
				for _, intent := range intents {
					fmt.Printf("  %-15s -> %s\n", intent, routes[classify.Intent(intent)])
				}
				fmt.Println()
			}

			return nil
		},
	}
}
