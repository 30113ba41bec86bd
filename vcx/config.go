package vcx

import (
	"path/filepath"
	"time"

	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/viper"
)

// Wallet backends.
const (
	WalletBolt = "bolt"
	WalletMem  = "mem"
	WalletAfgo = "afgo"
)

// Config is the runtime configuration. The mapstructure names are the viper
// keys, and with the FCLI prefix the environment variables too.
type Config struct {
	WalletBackend string `mapstructure:"wallet-backend"`
	WalletFile    string `mapstructure:"wallet-file"`
	// WalletKey is a hex encoded 32 byte key of the bolt wallet.
	WalletKey string `mapstructure:"wallet-key"`

	// LedgerFile is the transaction log of the local ledger, empty keeps
	// the ledger in memory.
	LedgerFile   string        `mapstructure:"ledger-file"`
	ConfirmDelay time.Duration `mapstructure:"confirm-delay"`

	// TrusteeSeed gives the genesis trustee of the ledger. The trustee's
	// keys are put to our wallet.
	TrusteeSeed string `mapstructure:"trustee-seed"`

	// MailboxURL is the base URL of the HTTP mailbox, empty is an in-memory
	// mailbox.
	MailboxURL string `mapstructure:"mailbox-url"`

	Timeout time.Duration `mapstructure:"timeout"`

	SnapshotFile string `mapstructure:"snapshot-file"`
	SnapshotKey  string `mapstructure:"snapshot-key"`

	CacheSize int `mapstructure:"cache-size"`
}

// DefaultConfig keeps everything in memory.
func DefaultConfig() Config {
	return Config{WalletBackend: WalletMem}
}

// FileConfig stores the wallet, the ledger and the snapshots under dir.
func FileConfig(dir string) Config {
	return Config{
		WalletBackend: WalletBolt,
		WalletFile:    filepath.Join(dir, "wallet.bolt"),
		LedgerFile:    filepath.Join(dir, "ledger.bolt"),
		SnapshotFile:  filepath.Join(dir, "snapshots.bolt"),
	}
}

// ConfigFromViper reads the config from v. Unset keys fall back to
// FileConfig of the data dir.
func ConfigFromViper(v *viper.Viper) (cfg Config, err error) {
	defer err2.Handle(&err, "config")

	cfg = FileConfig(utils.DataDir())
	try.To(v.Unmarshal(&cfg))
	try.To(cfg.Validate())
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.WalletBackend {
	case WalletBolt:
		if c.WalletFile == "" {
			return vcxerr.New(vcxerr.InvalidOption, "bolt wallet needs a file")
		}
	case WalletMem, WalletAfgo, "":
	default:
		return vcxerr.New(vcxerr.InvalidOption, "wallet backend %q", c.WalletBackend)
	}
	if c.TrusteeSeed != "" && len(c.TrusteeSeed) != 32 {
		return vcxerr.New(vcxerr.InvalidOption, "trustee seed must be 32 bytes")
	}
	if c.CacheSize < 0 {
		return vcxerr.New(vcxerr.InvalidOption, "cache size %d", c.CacheSize)
	}
	return nil
}
