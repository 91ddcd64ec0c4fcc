package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"trivia-game-service/internal/config"
	"trivia-game-service/internal/domain"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewSeedCmd loads question documents from a JSON file into the content
// store. The upstream fetch that produces such files is outside this service.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <questions.json>",
		Short: "Load question documents into the content store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd, cfg, args[0])
		},
	}
}

func runSeed(cmd *cobra.Command, cfg config.Config, path string) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return fmt.Errorf("parse questions: %w", err)
	}
	for _, q := range questions {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			return fmt.Errorf("question %d: correct_choice_index %d out of range for %d choices",
				q.ID, q.CorrectIndex, len(q.Choices))
		}
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := cmd.Context()
	for _, q := range questions {
		doc, err := json.Marshal(q)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
			q.ID, string(doc))
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.ID, err)
		}
	}
	log.Printf("seeded %d questions", len(questions))
	return nil
}
