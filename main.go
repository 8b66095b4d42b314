package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	appConfig "nowplaying/config"
	"nowplaying/audio"
	"nowplaying/controller"
	"nowplaying/recognition"
	"nowplaying/sentry"
	"nowplaying/stream"
)

var errorText = color.New(color.FgRed)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("nowplaying", flag.ContinueOnError)
	flags.SetOutput(stderr)
	streamURL := flags.String("url", "", "Stream URL (overrides config.json)")
	duration := flags.Int("duration", 0, "Duration in seconds to capture (default: 10)")
	configPath := flags.String("config", appConfig.DefaultSettingsPath, "Path to config file")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
	appConfig.NewConfig()
	setupLogging(appConfig.Config.Logging.Level, stderr)

	if err := sentry.Init(appConfig.Config.Sentry); err != nil {
		log.Warnf("sentry.Init: %v", err)
	}
	defer sentry.Flush()

	settings, ok := loadSettings(*configPath, *streamURL, *duration, stdout)
	if !ok {
		return 1
	}

	recognizerURL := appConfig.Config.Recognizer.URL
	if settings.RecognizerURL != "" {
		recognizerURL = settings.RecognizerURL
	}

	ctrl := controller.NewController(
		stream.NewResolver(stream.NewStreamlinkProvider(appConfig.Config.Tools.StreamlinkPath)),
		audio.NewCapturer(appConfig.Config.Tools.FFmpegPath),
		recognition.NewClient(recognizerURL, time.Duration(appConfig.Config.Recognizer.TimeoutSeconds)*time.Second),
		stdout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := ctrl.Run(ctx, controller.RunOptions{
		StreamURL:       settings.StreamURL,
		DurationSeconds: settings.DurationSeconds,
		AudioPath:       settings.AudioPath,
		CleanupAudio:    settings.CleanupAudio,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stdout, "\nCancelled.")
			return 0
		}
		errorText.Fprintf(stdout, "\n%s\n", controller.ErrorMessage(err))
		return 1
	}
	return 0
}

// loadSettings reads and validates the settings file, printing guidance to
// out when it cannot be used.
func loadSettings(path, streamURL string, duration int, out io.Writer) (*appConfig.Settings, bool) {
	settings, err := appConfig.LoadSettings(path)
	if err != nil {
		var parseErr *appConfig.ParseError
		switch {
		case errors.Is(err, appConfig.ErrConfigNotFound):
			errorText.Fprintf(out, "Error: Config file not found: %s\n", path)
			fmt.Fprintln(out, "Create a config.json with your stream URL:")
			fmt.Fprintf(out, "  %s\n", appConfig.SampleSettings)
		case errors.As(err, &parseErr):
			errorText.Fprintf(out, "Error: Invalid JSON in config file: %v\n", parseErr.Err)
		default:
			errorText.Fprintf(out, "Error: %v\n", err)
		}
		return nil, false
	}

	settings.ApplyOverrides(streamURL, duration)
	if err := settings.Validate(); err != nil {
		if errors.Is(err, appConfig.ErrMissingStreamURL) || errors.Is(err, appConfig.ErrPlaceholderStreamURL) {
			errorText.Fprintln(out, "Error: Please set a valid stream URL in config.json or use --url")
		} else {
			errorText.Fprintf(out, "Error: %v\n", err)
		}
		return nil, false
	}
	return settings, true
}

func setupLogging(level string, out io.Writer) {
	log.SetOutput(out)
	log.SetFormatter(&nested.Formatter{
		FieldsOrder:     []string{"module", "run_id"},
		TimestampFormat: time.RFC3339,
		HideKeys:        true,
		NoColors:        color.NoColor,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
