package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/C0rn3j/BeatSync/internal/services"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	gate       *shared.Gate
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		gate:       shared.NewGate(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, historyCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the runner's config, reloaded from the command's
// --config flag when it points at an existing file.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	path := cmd.String("config")
	if path == "" {
		return r.config
	}
	if _, err := os.Stat(path); err != nil {
		return r.config
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using current settings", "path", path, "error", err)
		return r.config
	}
	return config
}

// enabledSources builds the source clients the config enables, in merge
// priority order: BeatSaver first, then ScoreSaber, then BeastSaber.
func (r *Runner) enabledSources(config *shared.Config, beatSaver *services.BeatSaverService) []services.SourceClient {
	var sources []services.SourceClient
	if config.BeatSaver.Enabled {
		sources = append(sources, beatSaver)
	}
	if config.ScoreSaber.Enabled {
		sources = append(sources, services.NewScoreSaberService("", config.ScoreSaber, r.httpClient))
	}
	if config.BeastSaber.Enabled {
		sources = append(sources, services.NewBeastSaberService("", config.BeastSaber, r.httpClient))
	}
	return sources
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
