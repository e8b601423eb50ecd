package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/config"
	"nfvpe/derive-params/filesystem"
	"nfvpe/derive-params/openstack"
	"nfvpe/derive-params/output"
	"nfvpe/derive-params/util"
	"nfvpe/derive-params/web"

	"github.com/rs/zerolog"
)

// ConfigSource names the configuration file. A missing file is only an
// error when it was asked for explicitly.
type ConfigSource struct {
	Filename  string
	MustExist bool
}

func (source ConfigSource) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(source.Filename, source.MustExist)
	if err != nil {
		return nil, zerolog.Nop(), util.NewError(err, "configuration error")
	}
	return cfg, NewLogger(cfg.LogLevel), nil
}

func NewLogger(level string) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		logger.Warn().Str("level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	return logger.Level(parsed)
}

// readInput accepts a request as inline JSON or as the name of a file
// holding it.
func readInput(input string) ([]byte, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return []byte("{}"), nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	content, err := os.ReadFile(util.ExpandHomeDir(trimmed))
	if err != nil {
		return nil, util.NewError(err, "cannot read user input")
	}
	return content, nil
}

func factsRepository(cfg *config.Config, introspectionFile string, logger zerolog.Logger) compute.HardwareFactsRepository {
	if introspectionFile != "" {
		return filesystem.NewIntrospectionRepository(introspectionFile)
	}
	return openstackClient(cfg, logger)
}

func openstackClient(cfg *config.Config, logger zerolog.Logger) *openstack.Client {
	runner := openstack.NewExecCommandRunner(cfg.OpenstackTimeout, logger.With().Str("component", "command-runner").Logger())
	return openstack.New(runner, cfg.Openstack.Command, logger.With().Str("component", "openstack").Logger())
}

type DeriveArgs struct {
	Mode              compute.Mode
	Input             string
	IntrospectionFile string
	Format            string
	RecordHost        string
}

// Derive prints the parameters derived for the requested node on stdout.
func Derive(source ConfigSource, args DeriveArgs, stdout io.Writer) error {
	cfg, logger, err := source.load()
	if err != nil {
		return err
	}
	format := output.NewFormat(cfg.OutputFormat)
	if args.Format != "" {
		format = output.NewFormat(args.Format)
		if format == output.FormatUnknown {
			return fmt.Errorf("unknown output format '%s'", args.Format)
		}
	}
	names, err := compute.NewParameterNames(cfg.ParameterNames)
	if err != nil {
		return err
	}
	rawRequest, err := readInput(args.Input)
	if err != nil {
		return err
	}

	service := compute.New(factsRepository(cfg, args.IntrospectionFile, logger), cfg.ComputeOptions())
	logger.Info().Str("mode", args.Mode.String()).Msg("deriving parameters")
	derivation, err := service.Derive(context.Background(), args.Mode, rawRequest)
	if err != nil {
		return err
	}

	if args.RecordHost != "" {
		storage, err := filesystem.NewParameterSetStorage(cfg.ParametersFile)
		if err != nil {
			return err
		}
		if err := storage.Save(args.RecordHost, derivation.Parameters); err != nil {
			return err
		}
		logger.Info().Str("host", args.RecordHost).Str("file", cfg.ParametersFile).Msg("parameters recorded")
	}

	if format == output.FormatHeat {
		if err := output.WriteNumaSummary(stdout, derivation); err != nil {
			return err
		}
	}
	return output.Write(stdout, format, derivation.Parameters, names)
}

// Web serves the derivation api until the listener fails.
func Web(source ConfigSource) error {
	cfg, logger, err := source.load()
	if err != nil {
		return err
	}
	storage, err := filesystem.NewParameterSetStorage(cfg.ParametersFile)
	if err != nil {
		return err
	}
	webenv, err := web.New(cfg, logger.With().Str("component", "web").Logger(), storage)
	if err != nil {
		return err
	}
	handler := web.NewLogRequestMiddleware(
		logger.With().Str("component", "access").Logger(),
		cfg.Web.TrustedProxies, []string{"/api/v1/health"}, webenv,
	)
	server := http.Server{
		Addr:    cfg.Web.Listen,
		Handler: handler,
	}
	logger.Info().Str("addr", server.Addr).Msg("starting server")
	if err := server.ListenAndServe(); err != nil {
		return util.NewError(err, "serve failed")
	}
	return nil
}
