package cmd

import (
	"fmt"
	"os"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erc20-burn-relay/relayer/internal/burn"
	"github.com/erc20-burn-relay/relayer/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "burn-relayer",
	Short: "Relays ERC-20 burns indexed by an Etherscan-compatible API to a claim registry",
	// errors are already logged by the failing command
	SilenceUsage: true,
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"config",
		"",
		"Config file (toml, yaml or json) layered over the built-in defaults")

	// Source chain
	rootCmd.PersistentFlags().String(
		"network",
		"",
		"Network preset providing contract, deploy height and indexer URL (see the networks command)")

	rootCmd.PersistentFlags().String(
		"contract",
		"",
		"ERC-20 contract address on the source chain")

	rootCmd.PersistentFlags().Uint64(
		"deploy-height",
		0,
		"Block the ERC-20 contract was deployed in")

	// Indexer
	rootCmd.PersistentFlags().String(
		"indexer-url",
		"",
		"Etherscan-compatible API base URL")

	rootCmd.PersistentFlags().String(
		"indexer-api-key",
		"",
		"Indexer API key (required)")

	rootCmd.PersistentFlags().String(
		"http-proxy",
		"",
		"HTTP proxy for indexer requests (defaults to HTTP_PROXY)")

	rootCmd.PersistentFlags().Float64(
		"indexer-rps",
		5,
		"Maximum indexer requests per second, 0 disables the limit")

	rootCmd.PersistentFlags().Int(
		"page-size",
		500,
		"Transactions requested per indexer page")

	rootCmd.PersistentFlags().Int(
		"max-retries",
		5,
		"Attempts per indexer or destination query before giving up")

	// Burn filter
	rootCmd.PersistentFlags().String(
		"burn-address",
		burn.DefaultSinkAddress.Hex(),
		"Sink address that marks a transfer as a burn")

	rootCmd.PersistentFlags().Int64(
		"scale-factor",
		burn.DefaultScaleFactor,
		"Divisor converting source amounts to destination precision")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig binds the flags of the running command and loads the layered
// configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// bound per command, bindings of one command would shadow another's
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(viper.GetViper(), configFile)
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
