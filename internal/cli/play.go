package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"career-check-service/internal/app"
	"career-check-service/internal/catalog"
	"career-check-service/internal/config"
	"career-check-service/internal/domain"
	"career-check-service/internal/infra/memory"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const barWidth = 30

// NewPlayCmd runs the career check in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var bankID, bankDir string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take the career check in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if bankID == "" {
				bankID = cfg.Quiz.Bank
			}
			if bankID == "" {
				bankID = catalog.DefaultBankID
			}
			if bankDir == "" {
				bankDir = cfg.Quiz.BankDir
			}
			loader := catalog.Chain{catalog.Embedded()}
			if bankDir != "" {
				loader = catalog.Chain{catalog.NewDirLoader(bankDir), catalog.Embedded()}
			}
			return runPlay(cmd.Context(), loader, bankID, cfg.TopN(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&bankID, "bank", "", "question bank ID")
	cmd.Flags().StringVar(&bankDir, "bank-dir", "", "directory of <bank>.yaml files")
	return cmd
}

func runPlay(ctx context.Context, loader memory.BankLoader, bankID string, topN int, in io.Reader, out io.Writer) error {
	doc, err := loader.LoadBank(ctx, bankID)
	if err != nil {
		return err
	}
	bank, err := memory.BuildBank(doc)
	if err != nil {
		return err
	}

	session := app.NewSession(uuid.NewString(), bank, topN)
	scanner := bufio.NewScanner(in)
	view := session.View()
	for {
		render(out, bank, view)
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if input == "q" || input == "quit" {
			return nil
		}

		next, err := step(session, view.Screen, input)
		if err != nil {
			fmt.Fprintf(out, "! %s\n", describe(err))
		}
		view = next
	}
}

// step maps one line of input to a session transition.
func step(session *app.Session, screen domain.Screen, input string) (domain.View, error) {
	if input == "b" || input == "back" {
		return session.BackToLanding(), nil
	}
	switch screen {
	case domain.ScreenLanding:
		return session.Start()
	case domain.ScreenAsking:
		value, err := domain.ParseAnswer(input)
		if err != nil {
			return session.View(), err
		}
		return session.Answer(value)
	default:
		if input == "r" || input == "retry" {
			return session.Retry()
		}
		return session.View(), fmt.Errorf("%w: %q on result screen", domain.ErrInvalidTransition, input)
	}
}

func render(out io.Writer, bank *domain.QuestionBank, view domain.View) {
	switch view.Screen {
	case domain.ScreenLanding:
		fmt.Fprintf(out, "\n%s\n\n%s\n", view.Title, strings.TrimSpace(view.Lead))
		fmt.Fprintf(out, "[enter] start  [q] quit\n> ")
	case domain.ScreenAsking:
		filled := view.Progress * barWidth / 100
		fmt.Fprintf(out, "\nQ%d/%d [%s%s]\n", view.Index+1, view.Total,
			strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled))
		if view.Question != nil {
			fmt.Fprintf(out, "%s\n", view.Question.Text)
		}
		fmt.Fprintf(out, "[y]es  [n]o  [s]kip  [b]ack  [q]uit\n> ")
	case domain.ScreenResult:
		fmt.Fprintf(out, "\nYour match\n")
		fmt.Fprintf(out, "Match rate %d%% of the best possible score\n", view.MatchRate)
		for _, entry := range view.Ranking {
			label := string(entry.Role)
			if profile, ok := bank.Profile(entry.Role); ok {
				label = profile.Label
			}
			filled := entry.NormalizedScore * barWidth / 100
			fmt.Fprintf(out, "  %-24s %s %3d%% (%d pts)\n", label,
				strings.Repeat("#", filled)+strings.Repeat(" ", barWidth-filled), entry.NormalizedScore, entry.RawScore)
		}
		fmt.Fprintf(out, "\nTop %d\n", len(view.Highlights))
		for _, h := range view.Highlights {
			fmt.Fprintf(out, "%d. %s (match %d%%)\n", h.Rank, h.Label, h.NormalizedScore)
			if h.Description != "" {
				fmt.Fprintf(out, "   %s\n", h.Description)
			}
			for _, next := range h.NextSteps {
				fmt.Fprintf(out, "   - %s\n", next)
			}
		}
		fmt.Fprintf(out, "[r]etry  [b]ack  [q]uit\n> ")
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAnswer):
		return "answer with y, n or s"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "not available here"
	}
	return err.Error()
}
