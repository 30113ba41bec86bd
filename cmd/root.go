package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/vcx"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FCLI"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: utils.Version,
	Use:     "findy-vcx",
	Short:   "Findy VCX cli tool",
	Long: `
Findy VCX cli tool runs the credential protocols of the findy-vcx runtime:
the full demo flow, the HTTP mailbox and the ledger and key operations.
	`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.ParseLoggingArgs(rootFlags.logging)
		handleViperFlags(cmd)
	},
}

// Execute root
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns a current root command which can be used for adding own
// commands in an own repo.
func RootCmd() *cobra.Command {
	return rootCmd
}

// DryRun returns a value of a dry run flag.
func DryRun() bool {
	return rootFlags.dryRun
}

// RootFlags are the common flags
type RootFlags struct {
	cfgFile string
	dryRun  bool
	logging string
}

var rootFlags = RootFlags{}

var rootEnvs = map[string]string{
	"config":  "CONFIG",
	"logging": "LOGGING",
	"dry-run": "DRY_RUN",
}

// runtimeEnvs are the keys of vcx.Config.
var runtimeEnvs = map[string]string{
	"wallet-backend": "WALLET_BACKEND",
	"wallet-file":    "WALLET_FILE",
	"wallet-key":     "WALLET_KEY",
	"ledger-file":    "LEDGER_FILE",
	"confirm-delay":  "CONFIRM_DELAY",
	"trustee-seed":   "TRUSTEE_SEED",
	"mailbox-url":    "MAILBOX_URL",
	"timeout":        "TIMEOUT",
	"snapshot-file":  "SNAPSHOT_FILE",
	"snapshot-key":   "SNAPSHOT_KEY",
	"cache-size":     "CACHE_SIZE",
}

func init() {
	defer err2.Catch(func(err error) {
		log.Println(err)
	})

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.cfgFile, "config", "", flagInfo("configuration file", "", rootEnvs["config"]))
	flags.StringVar(&rootFlags.logging, "logging", "-logtostderr=true -v=2", flagInfo("logging startup arguments", "", rootEnvs["logging"]))
	flags.BoolVarP(&rootFlags.dryRun, "dry-run", "n", false, flagInfo("perform a trial run with no changes made", "", rootEnvs["dry-run"]))

	def := vcx.FileConfig(utils.DataDir())
	flags.String("wallet-backend", def.WalletBackend, flagInfo("wallet backend: bolt, mem or afgo", "", runtimeEnvs["wallet-backend"]))
	flags.String("wallet-file", def.WalletFile, flagInfo("bolt wallet file", "", runtimeEnvs["wallet-file"]))
	flags.String("wallet-key", "", flagInfo("hex encoded 32 byte wallet key", "", runtimeEnvs["wallet-key"]))
	flags.String("ledger-file", def.LedgerFile, flagInfo("ledger transaction log, empty is in memory", "", runtimeEnvs["ledger-file"]))
	flags.Duration("confirm-delay", 0, flagInfo("ledger write confirmation delay", "", runtimeEnvs["confirm-delay"]))
	flags.String("trustee-seed", "", flagInfo("seed of the genesis trustee", "", runtimeEnvs["trustee-seed"]))
	flags.String("mailbox-url", "", flagInfo("HTTP mailbox base URL, empty is in memory", "", runtimeEnvs["mailbox-url"]))
	flags.Duration("timeout", 0, flagInfo("default protocol deadline, 0 is none", "", runtimeEnvs["timeout"]))
	flags.String("snapshot-file", def.SnapshotFile, flagInfo("snapshot store file", "", runtimeEnvs["snapshot-file"]))
	flags.String("snapshot-key", "", flagInfo("hex encoded 32 byte snapshot key", "", runtimeEnvs["snapshot-key"]))
	flags.Int("cache-size", 0, flagInfo("ledger resolver cache size", "", runtimeEnvs["cache-size"]))

	try.To(viper.BindPFlag("logging", flags.Lookup("logging")))
	try.To(viper.BindPFlag("dry-run", flags.Lookup("dry-run")))
	for key := range runtimeEnvs {
		try.To(viper.BindPFlag(key, flags.Lookup(key)))
	}

	try.To(BindEnvs(rootEnvs, ""))
	try.To(BindEnvs(runtimeEnvs, ""))
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer("-", "_")
	viper.SetEnvKeyReplacer(replacer)
	readConfigFile()
	readBoundRootFlags()
}

func readBoundRootFlags() {
	rootFlags.logging = viper.GetString("logging")
	rootFlags.dryRun = viper.GetBool("dry-run")
}

func readConfigFile() {
	cfgEnv := os.Getenv(getEnvName("", "config"))
	if rootFlags.cfgFile != "" || cfgEnv != "" {
		printInfo := true
		if rootFlags.cfgFile == "" {
			rootFlags.cfgFile = cfgEnv
			printInfo = false
		}
		viper.SetConfigFile(rootFlags.cfgFile)
		if err := viper.ReadInConfig(); err == nil && printInfo {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// runtimeConfig returns the vcx config of the bound flags, the environment
// and the config file.
func runtimeConfig() (vcx.Config, error) {
	return vcx.ConfigFromViper(viper.GetViper())
}

// BindEnvs calls viper.BindEnv with envMap and cmdName which can be empty if
// flag is general.
func BindEnvs(envMap map[string]string, cmdName string) (err error) {
	defer err2.Handle(&err)

	for flagKey, envName := range envMap {
		finalEnvName := getEnvName(cmdName, envName)
		try.To(viper.BindEnv(flagKey, finalEnvName))
	}
	return nil
}

func flagInfo(info, cmdPrefix, envName string) string {
	return info + ", " + getEnvName(cmdPrefix, envName)
}

func getEnvName(cmdName, envName string) string {
	if cmdName == "" {
		return envPrefix + "_" + strings.ToUpper(envName)
	}
	return envPrefix + "_" + strings.ToUpper(cmdName) + "_" + envName
}

func handleViperFlags(cmd *cobra.Command) {
	setRequiredStringFlags(cmd)
	if cmd.HasParent() {
		handleViperFlags(cmd.Parent())
	}
}

func setRequiredStringFlags(cmd *cobra.Command) {
	defer err2.Catch(func(err error) {
		log.Println(err)
	})

	try.To(viper.BindPFlags(cmd.LocalFlags()))
	if cmd.PreRunE != nil {
		try.To(cmd.PreRunE(cmd, nil))
	}
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if viper.GetString(f.Name) != "" {
			try.To(cmd.LocalFlags().Set(f.Name, viper.GetString(f.Name)))
		}
	})
}

// SubCmdNeeded prints the help and error messages because the cmd is abstract.
func SubCmdNeeded(cmd *cobra.Command) {
	fmt.Println("Subcommand needed!")
	_ = cmd.Help()
	os.Exit(1)
}
