package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "paywallet.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "paywallet.log"
	defaultKeyStoreDir    = "keys"
	defaultSQLiteFilename = "receipts.db"
	defaultPaymentMethod  = "sov"
	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	dbBackendSQLite   = "sqlite"
	dbBackendPostgres = "postgres"
	dbBackendNone     = "none"

	// passphraseEnv names the environment variable read for the key store
	// passphrase before prompting.
	passphraseEnv = "PAYWALLET_PASSPHRASE"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("paywallet", false)
	defaultConfigFile = filepath.Join(
		defaultAppDataDir, defaultConfigFilename,
	)
)

type ledgerConfig struct {
	Host     string `long:"host" description:"host:port of the ledger access node"`
	User     string `long:"user" description:"Username for the ledger access node"`
	Pass     string `long:"pass" default-mask:"-" description:"Password for the ledger access node"`
	CAFile   string `long:"cafile" description:"File containing the TLS certificate of the ledger access node"`
	NoTLS    bool   `long:"notls" description:"Talk plain HTTP to the ledger access node"`
	Identity string `long:"identity" description:"Ledger identity requests are signed as"`
}

type keyStoreConfig struct {
	Dir string `long:"dir" description:"Directory of the encrypted key store"`
}

type dbConfig struct {
	Backend     string `long:"backend" choice:"sqlite" choice:"postgres" choice:"none" description:"Receipt journal backend"`
	SQLitePath  string `long:"sqlitepath" description:"Path of the SQLite receipt journal"`
	PostgresDSN string `long:"postgresdsn" description:"Postgres connection string of the receipt journal"`
}

type agreementConfig struct {
	Text      string `long:"text" description:"Text of the accepted transaction author agreement"`
	Version   string `long:"version" description:"Version of the accepted transaction author agreement"`
	Digest    string `long:"digest" description:"Hex digest of the accepted transaction author agreement"`
	Mechanism string `long:"mechanism" description:"Acceptance mechanism, e.g. on_file"`
}

// config defines the global options of paywalletctl.
type config struct {
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir     string `short:"A" long:"appdata" description:"Application data directory"`
	LogDir         string `long:"logdir" description:"Directory to log output"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	PaymentMethod   string `long:"paymentmethod" description:"Payment method of the wallet"`
	NoPaymentMethod bool   `long:"nopaymentmethod" description:"Submit ledger writes without fees"`
	Mock            bool   `long:"mock" description:"Use an in-memory demo ledger and signer. Sources spent by journaled receipts are removed from the demo wallet; change outputs are never credited"`

	Ledger    *ledgerConfig    `group:"Ledger" namespace:"ledger"`
	KeyStore  *keyStoreConfig  `group:"Key store" namespace:"keystore"`
	DB        *dbConfig        `group:"Receipt journal" namespace:"db"`
	Agreement *agreementConfig `group:"Transaction author agreement" namespace:"taa"`
}

// defaultConfig returns the configuration with every default applied.
func defaultConfig() *config {
	return &config{
		ConfigFile:     defaultConfigFile,
		AppDataDir:     defaultAppDataDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		PaymentMethod:  defaultPaymentMethod,
		Ledger:         &ledgerConfig{},
		KeyStore:       &keyStoreConfig{},
		DB: &dbConfig{
			Backend: dbBackendSQLite,
		},
		Agreement: &agreementConfig{},
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
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

// preParseConfigFile returns the configuration file named on the command
// line, ignoring every other option.
func preParseConfigFile(args []string) (string, bool) {
	preCfg := defaultConfig()
	preParser := flags.NewParser(
		preCfg, flags.IgnoreUnknown|flags.PassDoubleDash,
	)
	_, _ = preParser.ParseArgs(args)

	return cleanAndExpandPath(preCfg.ConfigFile),
		preCfg.ConfigFile != defaultConfigFile
}

// loadConfigFile applies the configuration file to parser. A missing file
// is only an error when it was named explicitly.
func loadConfigFile(parser *flags.Parser, path string, explicit bool) error {
	err := flags.NewIniParser(parser).ParseFile(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && !explicit {
		return nil
	}

	return fmt.Errorf("error parsing config file %s: %w", path, err)
}

// validate expands paths, fills in defaults depending on other options and
// checks the options are consistent.
func (c *config) validate() error {
	c.AppDataDir = cleanAndExpandPath(c.AppDataDir)

	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.AppDataDir, defaultLogDirname)
	}
	c.LogDir = cleanAndExpandPath(c.LogDir)

	if c.KeyStore.Dir == "" {
		c.KeyStore.Dir = filepath.Join(
			c.AppDataDir, defaultKeyStoreDir,
		)
	}
	c.KeyStore.Dir = cleanAndExpandPath(c.KeyStore.Dir)

	if c.MaxLogFiles < 0 || c.MaxLogFileSize <= 0 {
		return fmt.Errorf("invalid log rotation settings: %d files "+
			"of %d MB", c.MaxLogFiles, c.MaxLogFileSize)
	}

	if c.NoPaymentMethod && c.PaymentMethod != defaultPaymentMethod {
		return errors.New("--paymentmethod and --nopaymentmethod " +
			"are mutually exclusive")
	}

	switch c.DB.Backend {
	case dbBackendSQLite:
		if c.DB.SQLitePath == "" {
			c.DB.SQLitePath = filepath.Join(
				c.AppDataDir, defaultSQLiteFilename,
			)
		}
		c.DB.SQLitePath = cleanAndExpandPath(c.DB.SQLitePath)

	case dbBackendPostgres:
		if c.DB.PostgresDSN == "" {
			return errors.New("--db.postgresdsn is required for " +
				"the postgres backend")
		}

	case dbBackendNone:

	default:
		return fmt.Errorf("unknown receipt journal backend %q",
			c.DB.Backend)
	}

	if c.Mock {
		return nil
	}

	if c.Ledger.Host == "" {
		return errors.New("--ledger.host is required unless --mock " +
			"is set")
	}

	if c.Ledger.Identity == "" {
		return errors.New("--ledger.identity is required unless " +
			"--mock is set")
	}

	return nil
}

// logFile returns the path of the log file.
func (c *config) logFile() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}
