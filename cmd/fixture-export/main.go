// Exports a recorded conversation from the diagnostics store as a
// replay fixture skeleton. Canned embeddings must be filled in by the
// caller before the fixture exercises semantic matching.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/diag"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/replay"
)

// #region main

func main() {
	var dbPath string
	var conversationID string
	var outPath string
	var limit int

	root := &cobra.Command{
		Use:   "fixture-export",
		Short: "Export recorded turns as a replay fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dbPath, conversationID, outPath, limit)
		},
	}
	root.Flags().StringVar(&dbPath, "db", "engine_diag.db", "diagnostics database path")
	root.Flags().StringVar(&conversationID, "conversation", "", "conversation to export")
	root.Flags().StringVarP(&outPath, "out", "o", "fixture.json", "output fixture path")
	root.Flags().IntVar(&limit, "limit", 100, "max turns")
	root.MarkFlagRequired("conversation")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(dbPath, conversationID, outPath string, limit int) error {
	store, err := diag.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(conversationID, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records for conversation %q", conversationID)
	}

	// Recent returns newest first; fixtures replay oldest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	fixture := replay.Fixture{
		Description: fmt.Sprintf("exported from conversation %s (%d turns)", conversationID, len(records)),
		Embeddings:  map[string][]float32{},
	}
	for i, rec := range records {
		fixture.Turns = append(fixture.Turns, replay.FixtureTurn{Utterance: rec.Utterance})

		exp := replay.FixtureExpectation{Turn: i, Intent: rec.Intent}
		for _, sel := range rec.Selected {
			if sel.Type == "reactive" {
				exp.Reactive = sel.BehaviorID
			} else {
				exp.Proactive = append(exp.Proactive, sel.BehaviorID)
			}
		}
		fixture.Expected = append(fixture.Expected, exp)
	}

	out, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("wrote %s: %d turns\n", outPath, len(fixture.Turns))
	return nil
}

// #endregion run
