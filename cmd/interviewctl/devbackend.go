package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"interviewroom/internal/devbackend"
	"interviewroom/internal/questions"
)

func (c *cli) devBackendCmd() *cobra.Command {
	var addr string
	var bankPath string
	var minutes int

	cmd := &cobra.Command{
		Use:   "dev-backend",
		Short: "Serve an in-memory interview backend for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bank := questions.Default()
			if bankPath != "" {
				loaded, err := questions.LoadFile(bankPath)
				if err != nil {
					return err
				}
				bank = loaded
			}

			handler := devbackend.New(devbackend.Options{
				Questions:       bank.Questions,
				InterviewType:   bank.Title,
				DurationMinutes: minutes,
				Token:           c.cfg.Backend.Token,
				Logger:          c.logger,
			})
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			c.logger.Info("dev backend listening", "addr", addr, "base_url", "http://"+addr+"/api", "questions", len(bank.Questions))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address")
	cmd.Flags().StringVar(&bankPath, "questions", "", "YAML question bank to serve")
	cmd.Flags().IntVar(&minutes, "duration", 45, "Interview duration reported by verify-access, in minutes")
	return cmd
}
