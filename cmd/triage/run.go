package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/triage"
)

var runFlags struct {
	ticketID   string
	customerID string
	vip        string
	asJSON     bool
}

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Triage one ticket and print every stage",
	Long: `Triage a single ticket. The message is taken from the arguments, or from
stdin when no arguments are given. Each stage prints the raw model output and
the accepted structured result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cfg.LogLevel, os.Stderr)

		message := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			message = string(data)
		}

		proc := processor.New(newPipeline(cfg, nil), processor.Deps{}, slog.Default())
		res, err := proc.Triage(cmd.Context(), ticket.Ticket{
			ID:         runFlags.ticketID,
			Message:    message,
			CustomerID: runFlags.customerID,
			VIPLevel:   ticket.ParseVIPLevel(runFlags.vip),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if runFlags.asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Run)
		}
		return printRun(out, res.Run)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.ticketID, "id", "", "ticket id (generated when empty)")
	runCmd.Flags().StringVar(&runFlags.customerID, "customer", "", "customer id")
	runCmd.Flags().StringVar(&runFlags.vip, "vip", "", "customer VIP level (bronze, silver, gold, platinum)")
	runCmd.Flags().BoolVar(&runFlags.asJSON, "json", false, "print the full run as JSON")
}

func printRun(w io.Writer, run *triage.Run) error {
	fmt.Fprintf(w, "Ticket %s (prompt %s, %s)\n\n", run.Ticket.ID, run.PromptVersion, run.Duration.Round(time.Millisecond))

	printStage(w, "Classification", string(run.Classification.Source), run.Classification.Raw, run.Classification.Value)
	printStage(w, "Routing", string(run.Routing.Source), run.Routing.Raw, run.Routing.Value)

	fmt.Fprintf(w, "== Reply (%s) ==\n%s\n", run.Reply.Source, run.Reply.Value)
	return nil
}

func printStage(w io.Writer, title, source, raw string, value any) {
	fmt.Fprintf(w, "== %s (%s) ==\n", title, source)
	if raw != "" {
		fmt.Fprintf(w, "raw: %s\n", strings.TrimSpace(raw))
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "error: %v\n\n", err)
		return
	}
	fmt.Fprintf(w, "%s\n\n", data)
}
