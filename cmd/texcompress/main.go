package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"texture-compressor-go/internal/batch"
	"texture-compressor-go/internal/compressor"
	"texture-compressor-go/internal/config"
	"texture-compressor-go/internal/logger"
	"texture-compressor-go/internal/texture"
	"texture-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile          string
	verbose          bool
	quiet            bool
	format           string
	ignoreValidation bool
	dryRun           bool
	builtin          bool
	workers          int
	timeout          time.Duration
	port             int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "texcompress",
	Short: "Compress textures into WebGL block-compressed DDS files",
	Long: `texcompress converts a directory of texture images into GPU block-compressed
DDS files for the WEBGL_compressed_texture_s3tc extension.

Compressed formats:
- BC1 (DXT1) - RGB, 1-bit alpha, 6:1 compression
- BC2 (DXT3) - RGBA, explicit alpha, 4:1 compression
- BC3 (DXT5) - RGBA, interpolated alpha, 4:1 compression

Mipmaps are not generated offline; the renderer builds them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// compressCmd compresses every texture under a directory.
var compressCmd = &cobra.Command{
	Use:   "compress <input_dir> <output_dir>",
	Short: "Compress all textures under input_dir",
	Long: `Scans input_dir for .png, .jpg, .jpeg, .tga and .bmp files, validates their
dimensions, and compresses each one with the external compressor.

Without --format every format is produced, each under its own directory:
  output_dir/BC1/...  output_dir/BC2/...  output_dir/BC3/...

When input_dir and output_dir are the same directory, outputs are written
next to their sources.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args[0], args[1])
	},
}

// validateCmd only runs the dimension checks.
var validateCmd = &cobra.Command{
	Use:   "validate <input_dir>",
	Short: "Check texture dimensions without compressing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.Context(), args[0])
	},
}

// formatsCmd lists the supported output formats.
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported compression formats",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, f := range texture.Formats() {
			fmt.Printf("%-4s %s  %s\n", f.Name, f.Extension, f.Description)
		}
	},
}

// serveCmd starts the HTTP control surface.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket control server",
	Long: `Starts a server that runs compression batches on request and streams
job results over a WebSocket at /ws.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	compressCmd.Flags().StringVar(&format, "format", "", "compress to a single format (BC1, BC2, BC3)")
	compressCmd.Flags().BoolVar(&ignoreValidation, "ignore-validation", false, "compress even when textures fail validation")
	compressCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the jobs without compressing")
	compressCmd.Flags().BoolVar(&builtin, "builtin", false, "use the in-process encoder instead of the external binary")
	compressCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers (default: CPUs - 1)")
	compressCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-file timeout (default: 60s)")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(serveCmd)
}

// runCompress executes one compression batch.
func runCompress(ctx context.Context, inputDir, outputDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.InputDirectory, err = filepath.Abs(inputDir); err != nil {
		return err
	}
	if cfg.OutputDirectory, err = filepath.Abs(outputDir); err != nil {
		return err
	}
	if format != "" {
		cfg.Formats = []string{format}
	}
	if ignoreValidation {
		cfg.Validation.IgnoreErrors = true
	}
	if dryRun {
		cfg.Security.DryRun = true
	}
	if builtin {
		cfg.Compressor.Backend = config.BackendBuiltin
	}
	if workers > 0 {
		cfg.Performance.WorkerThreads = workers
	}
	if timeout > 0 {
		cfg.Compressor.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := setupLogger(cfg)

	encoder, err := batch.NewEncoder(cfg)
	if err != nil {
		return err
	}
	if err := cfg.ValidatePaths(); err != nil {
		return err
	}

	hook := func(res compressor.Result) {
		if !quiet {
			mark := "✓"
			if !res.Success {
				mark = "✗"
			}
			fmt.Printf("%s %s\n", mark, res.Message)
		}
	}

	runner := batch.NewRunnerWithHook(cfg, log, batch.NewValidator(cfg, log), encoder, hook)
	report, err := runner.Run(ctx)
	if err != nil {
		var vErr *batch.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("validation failed!\n%w", err)
		}
		return fmt.Errorf("compression failed: %w", err)
	}

	if !quiet && !report.DryRun && len(report.Jobs) > 0 {
		fmt.Println("\n" + report.Summary.GetSummary())
		if report.Summary.Snapshot().Failure > 0 {
			fmt.Println(report.Summary.GetErrorSummary())
		}
	}

	return nil
}

// runValidate prints the validation report for a directory.
func runValidate(ctx context.Context, inputDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.InputDirectory = inputDir

	log := setupLogger(cfg)
	runner := batch.NewRunner(cfg, log, batch.NewValidator(cfg, log), nil)

	results, err := runner.Validate(ctx)
	for _, res := range results {
		mark := "✓"
		switch {
		case !res.Valid:
			mark = "✗"
		case res.Advisory:
			mark = "⚠️ "
		}
		fmt.Printf("%s %s: %s\n", mark, res.Path, res.Message)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n✓ %d texture(s) have valid dimensions\n", len(results))
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("texcompress server listening on http://localhost:%d\n", port)

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// loadConfig loads configuration from --config or the default locations.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    true,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
