// Replays a recorded fixture against the engine with canned
// embeddings, checking expectations and invariants turn by turn.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/config"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/engine"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/eval"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/logging"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/replay"
)

// #region main

func main() {
	var configPath string
	var fixturePath string

	root := &cobra.Command{
		Use:   "replay",
		Short: "Replay a conversation fixture and validate engine behavior",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, fixturePath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "configs/engine.yaml", "engine configuration file")
	root.Flags().StringVarP(&fixturePath, "fixture", "f", "", "fixture JSON file")
	root.MarkFlagRequired("fixture")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(configPath, fixturePath string) error {
	log := logging.New(zapcore.WarnLevel)
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fixture, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, replay.NewStubEmbedder(fixture.Embeddings), nil, log)
	if err != nil {
		return err
	}

	evalCfg := eval.DefaultConfig()
	evalCfg.MaxTokens = cfg.Composer.TotalBudget
	harness := replay.NewHarness(eng, eval.NewHarness(evalCfg, cfg.Library))

	summary, err := harness.Run(context.Background(), fixture)
	if err != nil {
		return err
	}

	for _, o := range summary.Outcomes {
		status := "ok"
		if len(o.Mismatches) > 0 || !o.Eval.Passed {
			status = "FAIL"
		}
		fmt.Printf("turn %d [%s] %q → intent=%s tokens=%d\n",
			o.Turn, status, o.Utterance, o.Result.Intent.Intent, o.Result.Response.TotalTokens)
		for _, m := range o.Mismatches {
			fmt.Printf("    mismatch: %s\n", m)
		}
		if !o.Eval.Passed {
			fmt.Printf("    invariant: %s\n", o.Eval.Reason)
		}
	}

	if !summary.Passed {
		return fmt.Errorf("replay failed: %d turns", len(summary.Outcomes))
	}
	fmt.Printf("replay passed: %d turns\n", len(summary.Outcomes))
	return nil
}

// #endregion run
