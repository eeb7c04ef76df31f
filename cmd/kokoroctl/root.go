package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/harunnryd/kokoroctl/pkg/errorsx"
	"github.com/harunnryd/kokoroctl/pkg/format"
	"github.com/harunnryd/kokoroctl/pkg/kokoro"
	"github.com/harunnryd/kokoroctl/pkg/logging"
	"github.com/harunnryd/kokoroctl/pkg/synth"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	text       string
	file       string
	filename   string
	noS3       bool
	raw        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "kokoroctl",
		Short:         "Send a text-to-speech request to a Kokoro TTS server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFile(cmd.ErrOrStderr(), opts.envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(cmd, opts)
		},
	}

	f := cmd.Flags()
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json); defaults to KOKOROCTL_CONFIG")

	f.String("host", "localhost", "server hostname (MCP_CLIENT_HOST)")
	f.Int("port", 9876, "server port (MCP_PORT)")
	f.String("transport", kokoro.TransportTCP, "transport: tcp or websocket")
	f.String("url", "", "websocket URL when --transport=websocket")
	f.String("framing", "json", "reply framing on tcp: json, single, eof or length")
	f.Duration("connect-timeout", 10*time.Second, "connect timeout")
	f.Duration("io-timeout", 120*time.Second, "timeout for sending the request and receiving the reply")
	f.Int("max-response-bytes", 1<<20, "largest accepted reply")

	f.StringVar(&opts.text, "text", "", "text to synthesize")
	f.StringVar(&opts.file, "file", "", "text file to read content from")
	f.String("voice", synth.DefaultVoice, "voice to use (TTS_VOICE)")
	f.Float64("speed", synth.DefaultSpeed, "speech speed (TTS_SPEED)")
	f.String("language", synth.DefaultLanguage, "language code (TTS_LANGUAGE)")
	f.StringVar(&opts.filename, "filename", "", "output filename (default: chosen by the server)")
	f.BoolVar(&opts.noS3, "no-s3", false, "disable S3 upload")
	f.BoolVar(&opts.raw, "raw", false, "print the raw JSON reply")

	f.String("log-level", "warn", "log level: debug, info, warn or error")
	f.String("log-format", "text", "log format: text or json")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func loadEnvFile(stderr io.Writer, path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "Warning: could not load %s: %v\n", path, err)
	}
}

func runSynthesize(cmd *cobra.Command, opts *rootOptions) error {
	if opts.text == "" && opts.file == "" {
		return errorsx.New(errorsx.ReasonMissingInput, "either --text or --file is required")
	}

	configPath := opts.configPath
	if configPath == "" {
		// Read after the dotenv file has been loaded.
		configPath = os.Getenv("KOKOROCTL_CONFIG")
	}
	cfg, err := kokoro.LoadConfig(kokoro.LoadOptions{Path: configPath, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	logger := logging.InitLogger(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	client, err := kokoro.New(cfg, kokoro.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("client close failed", slog.Any("error", err))
		}
	}()

	p := cfg.Params()
	p.Text = opts.text
	p.File = opts.file
	p.Filename = opts.filename
	if opts.noS3 {
		p.UploadToS3 = false
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Sending request to %s...\n", client.Target())
	res, err := client.Synthesize(cmd.Context(), p)
	if err != nil {
		if errorsx.PreNetwork(err) {
			return err
		}
		// Network and decode failures end the exchange without a result.
		reportFailure(stderr, client.Target(), err)
		return nil
	}

	if opts.raw {
		return format.Raw(cmd.OutOrStdout(), res)
	}
	return format.Pretty(cmd.OutOrStdout(), res)
}

func reportFailure(w io.Writer, target string, err error) {
	switch errorsx.Reason(err) {
	case errorsx.ReasonConnectionFailed:
		fmt.Fprintf(w, "Error: Could not connect to Kokoro TTS server at %s\n", target)
		fmt.Fprintln(w, "Please make sure the server is running.")
	case errorsx.ReasonEmptyResponse:
		fmt.Fprintf(w, "Error: %s closed the connection without a reply\n", target)
	case errorsx.ReasonDecode:
		fmt.Fprintf(w, "Error: %v\n", err)
		var de *synth.DecodeError
		if errors.As(err, &de) {
			fmt.Fprintf(w, "Raw response: %q\n", de.Text)
		}
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
