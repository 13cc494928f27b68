// Dumps diagnostic turn records from the engine's SQLite store.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/diag"
)

// #region main

func main() {
	var dbPath string
	var conversationID string
	var limit int
	var list bool

	root := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect recorded turn diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dbPath, conversationID, limit, list)
		},
	}
	root.Flags().StringVar(&dbPath, "db", "engine_diag.db", "diagnostics database path")
	root.Flags().StringVar(&conversationID, "conversation", "", "filter by conversation id")
	root.Flags().IntVar(&limit, "limit", 20, "max records")
	root.Flags().BoolVar(&list, "list", false, "list conversation ids only")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(dbPath, conversationID string, limit int, list bool) error {
	store, err := diag.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if list {
		ids, err := store.Conversations()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	records, err := store.Recent(conversationID, limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		printRecord(rec)
	}
	fmt.Printf("%d records\n", len(records))
	return nil
}

// #endregion run

// #region print

func printRecord(rec diag.TurnRecord) {
	fmt.Printf("[%s] %s conv=%s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.TurnID[:8], rec.ConversationID)
	fmt.Printf("  utterance: %q\n", rec.Utterance)
	fmt.Printf("  intent: %s (%.3f)  drift: %.2e  tokens: %d\n", rec.Intent, rec.IntentScore, rec.Drift, rec.TotalTokens)

	for _, s := range rec.Signals {
		fmt.Printf("  signal: %s %s/%s conf=%.2f (%s)\n", s.RuleID, s.Category, s.Priority, s.Confidence, s.Source)
	}
	for _, b := range rec.Selected {
		fmt.Printf("  selected: %s %s score=%.3f budget=%d\n", b.BehaviorID, b.Type, b.Score, b.TokenBudget)
	}

	// Top situation dimensions, heaviest first.
	type dim struct {
		name   string
		weight float64
	}
	dims := make([]dim, 0, len(rec.Situation))
	for name, weight := range rec.Situation {
		dims = append(dims, dim{name, weight})
	}
	sort.Slice(dims, func(a, b int) bool { return dims[a].weight > dims[b].weight })
	if len(dims) > 3 {
		dims = dims[:3]
	}
	fmt.Print("  situation:")
	for _, d := range dims {
		fmt.Printf(" %s=%.3f", d.name, d.weight)
	}
	fmt.Println()
}

// #endregion print
