package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/symptomchecker/internal/checker"
	"github.com/Skufu/symptomchecker/internal/config"
	"github.com/Skufu/symptomchecker/internal/logging"
	"github.com/Skufu/symptomchecker/internal/schema"
	"github.com/Skufu/symptomchecker/internal/server"
)

type cli struct {
	envFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "symptomchecker",
		Short: "Symptom checker web service backed by a pre-trained disease classifier",
		Long: `symptomchecker serves a single-page form where users pick symptoms and get
the disease predicted by a pre-trained classifier.

Run without arguments to start the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if c.envFile != "" {
				files = append(files, c.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if c.verbose {
				cfg.LogLevel = "debug"
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: c.serve,
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  c.serve,
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the feature schema the model is served with",
			Args:  cobra.NoArgs,
			RunE:  c.printSchema,
		},
		&cobra.Command{
			Use:     "predict SYMPTOM...",
			Short:   "Predict a disease for the given symptoms without starting the server",
			Example: `  symptomchecker predict itching skin_rash nodal_skin_eruptions`,
			Args:    cobra.MinimumNArgs(1),
			RunE:    c.predict,
		},
	)
	return root
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(c.cfg.GinMode)

	a, err := openApp(ctx, c.cfg, c.logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Checker:      a.checker,
		Logger:       c.logger,
		MaxBodyBytes: c.cfg.MaxBodyBytes,
		AllowOrigins: c.cfg.AllowOrigins,
	}
	if a.store != nil {
		opts.DB = a.store
		opts.History = a.store
	}
	router, err := server.NewRouter(opts)
	if err != nil {
		return err
	}
	return server.Run(ctx, ":"+c.cfg.Port, router, c.logger)
}

func (c *cli) printSchema(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), c.cfg, c.logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.checker.Schema()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source: %s\n", a.checker.SchemaSource())
	fmt.Fprintf(out, "fingerprint: %s\n", s.Fingerprint())
	fmt.Fprintf(out, "features: %d\n", s.Len())
	for i, name := range s.Names() {
		fmt.Fprintf(out, "%4d  %s\n", i, name)
	}
	return nil
}

func (c *cli) predict(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), c.cfg, c.logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var selected []string
	for _, arg := range schema.NormalizeAll(args) {
		selected = checker.AddSymptom(selected, arg)
	}
	var unknown []string
	for _, s := range selected {
		if !a.checker.Schema().Contains(s) {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: ignoring unknown symptoms: %s\n", strings.Join(unknown, ", "))
	}

	res, err := a.checker.Predict(cmd.Context(), selected)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (class %d)\n", res.Text, res.Code)
	return nil
}
