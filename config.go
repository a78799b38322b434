package zmqsub

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/zmqsub/build"
	"github.com/lightningnetwork/zmqsub/monitoring"
	"github.com/lightningnetwork/zmqsub/transport"
	"github.com/lightningnetwork/zmqsub/zmqmsg"
)

const (
	defaultConfigFilename = "zmqsub.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "zmqsub.log"
	defaultLogLevel       = "info"

	// ModeBlocking consumes events through a callback.
	ModeBlocking = "blocking"

	// ModeReceiver consumes events from a shared receiver channel.
	ModeReceiver = "receiver"

	// ModeStream consumes events by polling a stream.
	ModeStream = "stream"

	defaultMode          = ModeReceiver
	defaultWorkers       = 1
	defaultStatsInterval = time.Minute
)

var (
	// DefaultAppDir is the default directory holding the config file and
	// logs.
	DefaultAppDir = btcutil.AppDataDir("zmqsub", false)

	// DefaultConfigFile is the default full path of the config file.
	DefaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)

	defaultLogDir = filepath.Join(DefaultAppDir, defaultLogDirname)

	// ErrNoZMQPub is returned when no notification endpoint is configured.
	ErrNoZMQPub = errors.New("at least one --zmqpub endpoint is required")
)

// Config defines the configuration options for zmqsub.
//
// See LoadConfig for further details regarding the configuration loading and
// parsing process.
//
//nolint:lll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	AppDir     string `long:"appdir" description:"The base directory that contains the config file and logs"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir     string `long:"logdir" description:"Directory to log output."`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	ZMQPub          []string      `long:"zmqpub" description:"The address of a node's ZMQ publisher, e.g. tcp://127.0.0.1:28332. May be given multiple times"`
	Topics          []string      `long:"topic" description:"Topic to subscribe to, all topics when unset. May be given multiple times" choice:"hashblock" choice:"hashtx" choice:"rawblock" choice:"rawtx" choice:"sequence"`
	ZMQReadDeadline time.Duration `long:"zmqreaddeadline" description:"The read deadline on the ZMQ sockets. Idle reads are retried, so this bounds how long a shutdown can wait on a quiet socket"`

	Mode          string        `long:"mode" description:"How events are consumed" choice:"blocking" choice:"receiver" choice:"stream"`
	Workers       int           `long:"workers" description:"Number of goroutines sharing the receiver in receiver mode"`
	ShowRaw       bool          `long:"showraw" description:"Dump the raw frames of every message at debug level"`
	StatsInterval time.Duration `long:"statsinterval" description:"How often to log a summary of received events, 0 to disable"`

	Prometheus *monitoring.PrometheusConfig `group:"prometheus" namespace:"prometheus"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	// configFileError is the non fatal error hit reading the config file.
	// It is logged once logging is set up.
	configFileError error
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		AppDir:          DefaultAppDir,
		ConfigFile:      DefaultConfigFile,
		LogDir:          defaultLogDir,
		DebugLevel:      defaultLogLevel,
		ZMQReadDeadline: transport.DefaultReadDeadline,
		Mode:            defaultMode,
		Workers:         defaultWorkers,
		StatsInterval:   defaultStatsInterval,
		Prometheus:      &monitoring.PrometheusConfig{},
		LogConfig:       build.DefaultLogConfig(),
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.Commit)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then we'll
	// use the default config file path. However, if the user has modified
	// their appdir, then we should assume they intend to use the config
	// file within it.
	configFileDir := CleanAndExpandPath(preCfg.AppDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultAppDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, defaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	cfg := preCfg
	var configFileError error
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	cleanCfg, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}
	cleanCfg.configFileError = configFileError

	return cleanCfg, nil
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided app directory is not the default, the log directory
	// lives within it.
	appDir := CleanAndExpandPath(cfg.AppDir)
	if appDir != DefaultAppDir && cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(appDir, defaultLogDirname)
	}
	cfg.AppDir = appDir
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)

	if len(cfg.ZMQPub) == 0 {
		return nil, ErrNoZMQPub
	}
	for _, endpoint := range cfg.ZMQPub {
		if err := transport.ValidateEndpoint(endpoint); err != nil {
			return nil, err
		}
	}

	for _, topic := range cfg.Topics {
		if _, ok := zmqmsg.ParseTopic([]byte(topic)); !ok {
			return nil, fmt.Errorf("unknown topic: %v", topic)
		}
	}

	switch cfg.Mode {
	case ModeBlocking, ModeReceiver, ModeStream:
	default:
		return nil, fmt.Errorf("unknown mode: %v", cfg.Mode)
	}

	if cfg.ZMQReadDeadline <= 0 {
		return nil, fmt.Errorf("zmqreaddeadline must be positive, "+
			"got %v", cfg.ZMQReadDeadline)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d",
			cfg.Workers)
	}
	if cfg.StatsInterval < 0 {
		return nil, fmt.Errorf("statsinterval must not be negative")
	}

	if err := cfg.LogConfig.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// topics returns the topics to subscribe to.
func (c *Config) topics() []string {
	if len(c.Topics) == 0 {
		return zmqmsg.TopicNames(zmqmsg.AllTopics...)
	}

	return c.Topics
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
