package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/app"
	"github.com/sahilchouksey/syllabus-sync/config"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils"
	"github.com/sahilchouksey/syllabus-sync/utils/auth"
	"github.com/sahilchouksey/syllabus-sync/utils/dateparse"
)

// --- extract ---

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Run the extraction pipeline on a local file and print its events",
		Long: `Run OCR and structuring on a PDF, JPEG or PNG file and print every pipeline event as
one JSON line.

Examples:
  syllabusctl extract ./cs101-syllabus.pdf
  LOG_LEVEL=debug syllabusctl extract ./scan.png`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	_ = config.LoadENV()
	env, err := config.Get()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(env.GO_ENV, env.LOG_LEVEL)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	upstreams, err := app.NewUpstreams(env, logger)
	if err != nil {
		return err
	}
	pipeline := app.NewPipeline(upstreams, services.NewMemoryResultCache(env.RESULT_CACHE_TTL), nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	_, err = pipeline.ProcessDocument(ctx, content, args[0], func(event services.PipelineEvent) error {
		return enc.Encode(event)
	})
	if err != nil {
		logger.Debug("pipeline failed", zap.Error(err))
		return fmt.Errorf("extraction failed: %s", services.UserMessage(err))
	}
	return nil
}

// --- parse-date ---

func newParseDateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-date <phrase>",
		Short: "Resolve a natural language due date",
		Long: `Resolve a due-date phrase the way the chat assistant does.

Examples:
  syllabusctl parse-date next friday
  syllabusctl parse-date "24 Nov" --ref 2025-10-15`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refStr, _ := cmd.Flags().GetString("ref")
			ref := time.Now()
			if refStr != "" {
				parsed, err := time.ParseInLocation("2006-01-02", refStr, time.Local)
				if err != nil {
					return fmt.Errorf("--ref must be YYYY-MM-DD: %w", err)
				}
				ref = parsed
			}

			phrase := strings.Join(args, " ")
			due, ok := dateparse.Parse(phrase, ref)
			if !ok {
				return fmt.Errorf("could not resolve %q to a date", phrase)
			}
			fmt.Fprintln(cmd.OutOrStdout(), due)
			return nil
		},
	}
	cmd.Flags().String("ref", "", "reference date (YYYY-MM-DD), defaults to today")
	return cmd
}

// --- token ---

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development bearer token",
		Long: `Mint a bearer token signed with JWT_SECRET for local development.

Examples:
  syllabusctl token 1
  syllabusctl token 42 --email ada@example.com --expiry 2h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("user id must be a positive integer")
			}
			email, _ := cmd.Flags().GetString("email")
			expiry, _ := cmd.Flags().GetDuration("expiry")

			_ = config.LoadENV()
			env, err := config.Get()
			if err != nil {
				return err
			}
			if env.JWT_SECRET == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			manager := auth.NewJWTManager(auth.JWTConfig{
				Secret: env.JWT_SECRET,
				Issuer: env.JWT_ISSUER,
				Expiry: expiry,
			})
			token, err := manager.Mint(uint(id), email, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("email", "", "email claim")
	cmd.Flags().Duration("expiry", 24*time.Hour, "token lifetime")
	return cmd
}
