// Interactive REPL for exercising the engine against a live embedding
// service. Type utterances, watch signals, situation, and the composed
// plan evolve turn by turn.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/config"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/diag"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/embedder"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/engine"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/logging"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// #region main

func main() {
	var configPath string
	var dbPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "engine",
		Short: "Conversational response-selection engine REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, dbPath, verbose)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "configs/engine.yaml", "engine configuration file")
	root.Flags().StringVar(&dbPath, "db", "", "diagnostics database path (empty disables persistence)")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(configPath, dbPath string, verbose bool) error {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	log := logging.New(level)
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	embedSvc, err := embedder.NewClient(cfg.Embedding, log)
	if err != nil {
		return err
	}

	var store *diag.Store
	if dbPath != "" {
		store, err = diag.NewStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	eng, err := engine.New(cfg, embedSvc, store, log)
	if err != nil {
		return err
	}

	fmt.Println("Engine ready. Type an utterance (or 'quit' to exit):")

	state := engine.State{}
	scanner := bufio.NewScanner(os.Stdin)
	turn := 0
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}
		if utterance == "quit" || utterance == "exit" {
			break
		}

		result := eng.ProcessTurn(context.Background(), engine.TurnInput{
			ConversationID: "repl",
			Utterance:      utterance,
			State:          state,
		})
		state = result.State
		turn++
		printTurn(turn, result)
	}
	return scanner.Err()
}

// #endregion run

// #region print

func printTurn(turn int, result engine.TurnResult) {
	fmt.Printf("--- turn %d ---\n", turn)
	fmt.Printf("intent: %s (%.3f)\n", result.Intent.Intent, result.Intent.Similarity)

	if len(result.Signals) == 0 {
		fmt.Println("signals: none")
	} else {
		fmt.Println("signals:")
		for _, s := range result.Signals {
			fmt.Printf("  %-24s %s/%s conf=%.2f (%s)\n", s.ID, s.Category, s.Priority, s.Confidence, s.Source)
		}
	}

	fmt.Print("situation:")
	for _, r := range situation.Dominant(result.State.Situation, 3) {
		fmt.Printf(" %s=%.3f", r.Dimension, r.Weight)
	}
	fmt.Println()

	if c := result.Response.Reactive; c != nil {
		fmt.Printf("reactive: %s (%d tokens)\n", c.BehaviorID, c.TokenBudget)
	}
	for i, c := range result.Response.Proactive {
		fmt.Printf("proactive[%d]: %s score=%.3f (%d tokens)\n", i, c.BehaviorID, c.Score, c.TokenBudget)
	}
	fmt.Printf("total: %d tokens\n", result.Response.TotalTokens)
}

// #endregion print
