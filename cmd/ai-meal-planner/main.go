// Command ai-meal-planner runs the ChefItUp HTTP API and its maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chefitup/internal/app"
	"chefitup/internal/config"
	"chefitup/internal/httpapi"
	"chefitup/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	addr        string
	cleanupDays int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ai-meal-planner",
	Short: "ChefItUp meal planner backend",
	Long: `ai-meal-planner serves the ChefItUp JSON API and offers a few
maintenance commands. Configuration comes from the environment.`,
	SilenceUsage: true,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "remove LLM usage records older than this many days")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(cleanupCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the recipe catalog",
	Long: `Search the recipe catalog the way the app does, printing the tier
that answered.

Examples:
  ai-meal-planner search "quick vegetarian dinner"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate and save a recipe",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

var cleanupCmd = &cobra.Command{
	Use:   "metrics-cleanup",
	Short: "Delete old LLM usage records",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

// setup loads configuration and builds the application.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	listen := addr
	if listen == "" {
		listen = a.Config().HTTPAddr
	}
	srv := httpapi.NewServer(a, listen, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exiting")
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	res := a.SearchRecipes(ctx, strings.Join(args, " "))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tier: %s\n", res.Tier)
	for _, r := range res.Recipes {
		fmt.Fprintf(out, "%-14s %s (%d min)\n", r.ID, r.Title, r.TotalTime())
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	r, err := a.GenerateRecipe(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n%s\n\n", r.ID, r.Title)
	for _, ing := range r.Ingredients {
		fmt.Fprintf(out, "- %s %s %s\n", ing.Quantity, ing.Unit, ing.Name)
	}
	fmt.Fprintln(out)
	for i, step := range r.Instructions {
		fmt.Fprintf(out, "%d. %s\n", i+1, step)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if cleanupDays < 1 {
		return errors.New("--days must be at least 1")
	}
	ctx := cmd.Context()
	a, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	n, err := a.CleanupMetrics(ctx, cleanupDays)
	if err != nil {
		return fmt.Errorf("failed to clean up metrics: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d usage records older than %d days\n", n, cleanupDays)
	return nil
}
