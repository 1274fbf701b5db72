package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"interviewroom/internal/bootstrap"
	"interviewroom/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	var sessionID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled interview sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := bootstrap.OpenJournal(c.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("journal is disabled")
			}
			defer store.Close()

			if sessionID != "" {
				entries, err := store.Entries(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				renderEntries(cmd.OutOrStdout(), entries)
				return nil
			}

			records, err := store.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderSessions(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list")
	cmd.Flags().StringVar(&sessionID, "session", "", "Show the answers of one session")
	return cmd
}

func renderSessions(w io.Writer, records []domain.SessionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}

	table := newTable(w)
	table.SetHeader([]string{"Session", "Interview", "Started", "Answered", "Status"})
	for _, record := range records {
		status := "pending"
		if record.CompletedAt != nil {
			status = "submitted " + record.CompletedAt.Local().Format(timeLayout)
		}
		table.Append([]string{
			record.ID,
			record.InterviewID,
			record.StartedAt.Local().Format(timeLayout),
			fmt.Sprintf("%d/%d", record.Entries, record.TotalQuestions),
			status,
		})
	}
	table.Render()
}

func renderEntries(w io.Writer, entries []domain.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No answers recorded.")
		return
	}

	table := newTable(w)
	table.SetHeader([]string{"#", "Question", "Answer", "Note"})
	for _, entry := range entries {
		note := ""
		switch {
		case entry.Partial:
			note = "cut short"
		case entry.SubmitError != "":
			note = "upload failed"
		}
		table.Append([]string{
			strconv.Itoa(entry.Sequence),
			entry.Question.Text,
			entry.Answer.Transcript,
			note,
		})
	}
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	return table
}
