package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"trivia-game-service/internal/app"
	"trivia-game-service/internal/config"
	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/infra/memory"
	pgstore "trivia-game-service/internal/infra/postgres"
	redisstore "trivia-game-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewPlayCmd builds the CLI subcommand for an interactive trivia session.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play a trivia session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath)
		},
	}
}

func runPlay(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	accounts, content, events, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := app.NewSessionEngine(accounts, content, events, sessionConfig(cfg))
	return playLoop(ctx, engine, bufio.NewScanner(os.Stdin), os.Stdout)
}

func sessionConfig(cfg config.Config) app.SessionConfig {
	return app.SessionConfig{
		PointsPerCorrect:    cfg.Quiz.PointsPerCorrect,
		QuestionsPerSession: cfg.Quiz.QuestionsPerSession,
		Filter: domain.QuestionFilter{
			Category:   cfg.Quiz.Category,
			Difficulty: cfg.Quiz.Difficulty,
		},
		SeedFromHistory: cfg.Quiz.SeedFromHistory,
		StoreTimeout:    config.TTLDuration(cfg.Quiz.StoreTimeout, 5*time.Second),
	}
}

// buildStores wires the persistence layers: Postgres when configured, with
// in-memory fallbacks for local play; Redis in front of the question loader
// when configured.
func buildStores(ctx context.Context, cfg config.Config) (app.AccountStore, app.ContentStore, app.EventStore, func(), error) {
	cleanup := func() {}

	var accounts app.AccountStore
	var events app.EventStore
	var loader memory.QuestionLoader

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, nil, cleanup, err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			db.Close()
			return nil, nil, nil, cleanup, err
		}
		cleanup = func() {
			pool.Close()
			db.Close()
		}
		accounts = pgstore.NewAccountStore(db)
		events = pgstore.NewEventStore(db)
		loader = pgstore.NewQuestionLoader(pool)
	} else {
		memAccounts := memory.NewAccountStore()
		accounts = memAccounts
		events = memory.NewEventStore(memAccounts)
		loader = memory.NewStaticQuestionLoader(sampleQuestions())
	}

	contentTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	var content app.ContentStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		content = redisstore.NewContentStore(client, loader, contentTTL)
	} else {
		content = memory.NewContentStore(loader, contentTTL)
	}

	return accounts, content, events, cleanup, nil
}

func playLoop(ctx context.Context, engine *app.SessionEngine, in *bufio.Scanner, out io.Writer) error {
	player, err := signIn(ctx, engine, in, out)
	if err != nil || player == nil {
		return err
	}

	if err := engine.StartSession(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nWelcome, %s! Starting a new game.\n", player.Username)

	for {
		question, err := engine.NextQuestion(ctx)
		if errors.Is(err, domain.ErrNoQuestionsRemaining) {
			fmt.Fprintln(out, "\nNo more questions available.")
			printSummary(out, engine.Summary())
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%s\n", question.Text)
		for i, choice := range question.Choices {
			fmt.Fprintf(out, "%c) %s\n", 'a'+i, choice)
		}

		done, err := handleTurn(ctx, engine, question, in, out)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func signIn(ctx context.Context, engine *app.SessionEngine, in *bufio.Scanner, out io.Writer) (*domain.Player, error) {
	for {
		choice := prompt(in, out, "\n1) Login  2) Register  q) Quit\nEnter your choice: ")
		switch choice {
		case "q":
			return nil, nil
		case "1", "2":
		default:
			fmt.Fprintln(out, "Invalid choice. Please enter '1', '2', or 'q'.")
			continue
		}

		username := prompt(in, out, "Enter username: ")
		password := prompt(in, out, "Enter password: ")

		var player domain.Player
		var err error
		if choice == "2" {
			player, err = engine.Register(ctx, username, password)
		} else {
			player, err = engine.Authenticate(ctx, username, password)
		}
		switch {
		case err == nil:
			return &player, nil
		case errors.Is(err, domain.ErrDuplicateUsername), errors.Is(err, domain.ErrInvalidCredentials):
			fmt.Fprintln(out, err)
		default:
			return nil, err
		}
	}
}

// handleTurn reads input until the pending question is answered, the player
// quits, or the session dies. Returns true when the play loop should stop.
func handleTurn(ctx context.Context, engine *app.SessionEngine, question domain.Question, in *bufio.Scanner, out io.Writer) (bool, error) {
	for {
		answer := prompt(in, out, "Enter your answer (a-d), 's' to view stats, or 'q' to quit: ")
		switch answer {
		case "q":
			summary, err := engine.EndSession()
			if err != nil {
				return true, err
			}
			printSummary(out, summary)
			return true, nil
		case "s":
			stats, err := engine.Statistics(ctx)
			if err != nil {
				return true, err
			}
			printStatistics(out, stats)
			continue
		}

		index, ok := choiceIndex(answer)
		if !ok {
			fmt.Fprintln(out, "Invalid input. Please select 'a', 'b', 'c', 'd', 's', or 'q'.")
			continue
		}

		result, err := engine.SubmitAnswer(ctx, index)
		if errors.Is(err, domain.ErrInvalidAnswerIndex) {
			fmt.Fprintln(out, err)
			continue
		}
		if err != nil {
			return true, err
		}

		if result.Correct {
			fmt.Fprintf(out, "'%s' is the correct answer! (+%d, score %d)\n",
				question.Choices[result.ChosenIndex], result.Awarded, result.Score)
		} else {
			fmt.Fprintf(out, "'%s' is not the correct answer. Correct answer was '%s'.\n",
				question.Choices[result.ChosenIndex], question.Choices[result.CorrectIndex])
		}
		return false, nil
	}
}

// choiceIndex maps a single letter a-z to a choice index.
func choiceIndex(answer string) (int, bool) {
	if len(answer) != 1 || answer[0] < 'a' || answer[0] > 'z' {
		return 0, false
	}
	return int(answer[0] - 'a'), true
}

func prompt(in *bufio.Scanner, out io.Writer, message string) string {
	fmt.Fprint(out, message)
	if !in.Scan() {
		return "q"
	}
	return strings.ToLower(strings.TrimSpace(in.Text()))
}

func printSummary(out io.Writer, summary domain.SessionSummary) {
	fmt.Fprintf(out, "\nSession over: %d answered, %d correct, score %d.\n",
		summary.Answered, summary.Correct, summary.Score)
}

func printStatistics(out io.Writer, stats domain.Statistics) {
	fmt.Fprintf(out, "Answered: %d  Correct: %d  Accuracy: %.0f%%  Streak: %d  Unanswered: %d\n",
		stats.TotalAnswered, stats.CorrectCount, stats.Accuracy*100, stats.CurrentStreak, stats.UnansweredCount)
	for category, cs := range stats.PerCategory {
		fmt.Fprintf(out, "  %s: %d/%d (%.0f%%)\n", category, cs.Correct, cs.Answered, cs.Accuracy*100)
	}
}

// sampleQuestions backs local play without Postgres; swap in the seeded
// content store for real data.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           1,
			Text:         "What is the capital of France?",
			Choices:      []string{"Lyon", "Paris", "Marseille", "Nice"},
			CorrectIndex: 1,
			Category:     "Geography",
			Difficulty:   "easy",
		},
		{
			ID:           2,
			Text:         "Which planet is known as the Red Planet?",
			Choices:      []string{"Venus", "Jupiter", "Mars", "Saturn"},
			CorrectIndex: 2,
			Category:     "Science",
			Difficulty:   "easy",
		},
		{
			ID:           3,
			Text:         "Who painted the Mona Lisa?",
			Choices:      []string{"Leonardo da Vinci", "Michelangelo", "Raphael", "Donatello"},
			CorrectIndex: 0,
			Category:     "Art",
			Difficulty:   "easy",
		},
	}
}
