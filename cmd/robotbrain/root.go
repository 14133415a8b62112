package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"robotbrain/internal/brain"
	"robotbrain/internal/checkpoint"
	"robotbrain/internal/config"
	"robotbrain/internal/graph"
	"robotbrain/internal/oracle"
	"robotbrain/internal/sim"
	"robotbrain/internal/state"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	warnLine = color.New(color.FgYellow)
	askLine  = color.New(color.FgMagenta, color.Bold)
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "robotbrain",
		Short:         "Dual-loop decision core for a mobile robot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newResumeCmd(&configPath))
	root.AddCommand(newInspectCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func openStore(cfg *config.Config) (brain.Store, error) {
	if cfg.CheckpointDSN == "" || cfg.CheckpointDSN == "memory" {
		return checkpoint.NewMemoryStore(), nil
	}
	return checkpoint.NewSQLiteStore(cfg.CheckpointDSN)
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		useSim bool
		say    []string
		ticks  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the decision core against the simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if ticks > 0 {
				cfg.MaxTicks = ticks
			}
			if !useSim {
				return fmt.Errorf("only the simulator backend is wired into this binary; pass --sim")
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			robot := sim.New()
			var o oracle.Oracle
			if cfg.OracleAPIKey != "" {
				o = oracle.NewClient(cfg)
			} else {
				warnLine.Println("no oracle api key configured, using the scripted mock")
				o = oracle.NewMock()
			}

			b, err := brain.New(cfg, brain.Deps{
				Oracle:    o,
				Telemetry: robot,
				World:     robot,
				Executor:  robot,
				Store:     store,
				Approver:  terminalApprover(cmd),
				AfterTick: robot.Advance,
			})
			if err != nil {
				return err
			}

			for _, utterance := range say {
				b.Say(utterance)
			}

			headline.Printf("robotbrain thread %s\n", b.ThreadID())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := b.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}

			if s := b.State(); s != nil {
				printSummary(cmd, s, robot)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useSim, "sim", true, "use the builtin robot simulator")
	cmd.Flags().StringArrayVar(&say, "say", nil, "utterance(s) to queue before the first tick")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "stop after N ticks (0 = run until interrupted)")
	return cmd
}

// terminalApprover asks the operator on stdin when the graph suspends.
func terminalApprover(cmd *cobra.Command) brain.Approver {
	return func(intr graph.Interrupt) (state.ApprovalResponse, error) {
		askLine.Printf("approval required for thread %s: %s\n", intr.ThreadID, intr.Payload.Reason)
		for _, op := range intr.Payload.Ops {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s %v\n", op.SkillName, op.Params)
		}
		fmt.Fprint(cmd.OutOrStdout(), "[a]pprove / [r]eject? ")

		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return state.ApprovalResponse{Action: state.ApprovalReject}, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve", "y", "yes":
			return state.ApprovalResponse{Action: state.ApprovalApprove}, nil
		default:
			return state.ApprovalResponse{Action: state.ApprovalReject}, nil
		}
	}
}

func printSummary(cmd *cobra.Command, s *state.BrainState, robot *sim.Simulator) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mode=%s battery=%.1f%% pos=(%.1f, %.1f)\n",
		s.Tasks.Mode, s.Robot.BatteryPct, s.Robot.Pose.X, s.Robot.Pose.Y)
	if s.React.StopReason != "" {
		fmt.Fprintf(out, "stop reason: %s\n", s.React.StopReason)
	}
	for _, line := range robot.Spoken() {
		fmt.Fprintf(out, "robot said: %s\n", line)
	}
}

func newResumeCmd(configPath *string) *cobra.Command {
	var (
		approve bool
		reject  bool
		edits   []string
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Deliver an approval response to a suspended thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.ThreadID == "" {
				return fmt.Errorf("resume requires thread_id in config or ROBOTBRAIN_THREAD_ID")
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			robot := sim.New()
			var o oracle.Oracle = oracle.NewMock()
			if cfg.OracleAPIKey != "" {
				o = oracle.NewClient(cfg)
			}

			b, err := brain.New(cfg, brain.Deps{
				Oracle:    o,
				Telemetry: robot,
				World:     robot,
				Executor:  robot,
				Store:     store,
				AfterTick: robot.Advance,
			})
			if err != nil {
				return err
			}

			response := state.ApprovalResponse{Action: state.ApprovalReject}
			switch {
			case approve:
				response.Action = state.ApprovalApprove
			case reject:
				response.Action = state.ApprovalReject
			}
			if len(edits) > 0 {
				response.Action = state.ApprovalEdit
				response.EditedParams = map[string]any{}
				for _, kv := range edits {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						continue
					}
					if num, err := strconv.ParseFloat(parts[1], 64); err == nil {
						response.EditedParams[parts[0]] = num
					} else {
						response.EditedParams[parts[0]] = parts[1]
					}
				}
			}

			result, err := b.Resume(context.Background(), response)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resumed thread %s, stop reason: %s\n", cfg.ThreadID, result.StopReason)
			return nil
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "approve the pending operations")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the pending operations")
	cmd.Flags().StringArrayVar(&edits, "edit", nil, "edit a param as key=value (implies approval)")
	return cmd
}

func newInspectCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List recent checkpoints for the configured thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.ThreadID == "" {
				return fmt.Errorf("inspect requires thread_id in config or ROBOTBRAIN_THREAD_ID")
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cps, err := store.List(cfg.ThreadID, limit)
			if err != nil {
				return err
			}
			if len(cps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints")
				return nil
			}
			for _, cp := range cps {
				s, err := state.Deserialize(cp.State)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%6d  %-18s  <unreadable: %v>\n", cp.StepIndex, cp.NodeName, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%6d  %-18s  mode=%-6s iter=%-3d running=%d\n",
					cp.StepIndex, cp.NodeName, s.Tasks.Mode, s.React.Iter, len(s.Skills.Running))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "checkpoints to show")
	return cmd
}
