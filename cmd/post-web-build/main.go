package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-errors/errors"
	"github.com/narizgnaw/post-web-build/internal/config"
	"github.com/narizgnaw/post-web-build/internal/patcher"
	"github.com/narizgnaw/post-web-build/internal/snippet"
	"github.com/narizgnaw/post-web-build/internal/watcher"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errReported 错误信息已输出，只需返回非零退出码
var errReported = errors.New("reported")

type options struct {
	root    string
	target  string
	webhook string
	watch   bool
	verbose bool
}

type env struct {
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := env{
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
	}
	code := run(ctx, os.Args[1:], e)
	stop()
	os.Exit(code)
}

// run 执行命令并返回退出码
func run(ctx context.Context, args []string, e env) int {
	cmd := newRootCmd(e)
	cmd.SetArgs(args)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(e env) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "post-web-build",
		Short:         "Inject the visit notification snippet into the Godot web export",
		Long:          "Run this after each Godot web export to docs/. Re-running is safe: an already patched file is left untouched.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), cmd, e, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.root, "root", ".", "project root containing the build output")
	flags.StringVar(&opts.target, "target", "", "build output path relative to root (default "+config.DefaultTarget+")")
	flags.StringVar(&opts.webhook, "webhook", "", "webhook endpoint, overrides "+config.WebhookEnv)
	flags.BoolVar(&opts.watch, "watch", false, "keep running and re-inject whenever the export is rewritten")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print diagnostic logs to stderr")

	return cmd
}

func execute(ctx context.Context, cmd *cobra.Command, e env, opts options) error {
	logger := newLogger(e.stderr, opts.verbose)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(e.fs, opts.root, e.lookupEnv)
	if err != nil {
		return err
	}
	if opts.target != "" {
		cfg.Target = opts.target
	}
	if opts.webhook != "" {
		cfg.Webhook = opts.webhook
	}
	logger.Debug("配置已加载", zap.String("root", opts.root), zap.String("target", cfg.Target))

	p := patcher.NewPatcher(e.fs, cfg.TargetPath(opts.root), snippet.New(cfg.Webhook), logger)
	report := func(result patcher.Result, err error) {
		printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Target, result, err)
	}

	if opts.watch {
		return watcher.New(p, report, logger).Run(ctx)
	}

	result, err := p.Apply()
	report(result, err)
	if err != nil {
		return errReported
	}
	return nil
}

// printResult 每次执行只输出一行
func printResult(stdout, stderr io.Writer, display string, result patcher.Result, err error) {
	switch {
	case errors.Is(err, patcher.ErrMissingInput):
		fmt.Fprintf(stderr, "Error: %s not found. Run the Godot web export first.\n", display)
	case errors.Is(err, patcher.ErrMalformedInput):
		fmt.Fprintf(stderr, "Error: could not find \"%s\" in %s\n", snippet.Anchor, display)
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	case result.Outcome == patcher.AlreadyApplied:
		fmt.Fprintln(stdout, "Webhook snippet already present, skipping.")
	default:
		fmt.Fprintf(stdout, "Webhook snippet injected into %s\n", display)
	}
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}
