package command

import (
	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/internal/config"
	"github.com/erik-marten/VeriLog/internal/infra/confloader"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// keyFlagKeys maps key flags to their configuration keys.
var keyFlagKeys = map[string]string{
	"dek":        "keys.dek",
	"dek-file":   "keys.dek_file",
	"passphrase": "keys.passphrase",
	"salt":       "keys.salt",
	"master-key": "keys.master_key",
	"hkdf-info":  "keys.hkdf_info",
}

// keyFlags returns the flags selecting the DEK and the trusted public keys.
func keyFlags() []cli.Flag {
	return append(dekFlags(), &cli.StringSliceFlag{
		Name:    "pubkey",
		Aliases: []string{"k"},
		Usage:   "PEM public key file trusted for signatures (repeatable)",
	})
}

// dekFlags returns the flags selecting the data-encryption key.
func dekFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "dek",
			Usage: "32-byte data-encryption key, hex or base64",
		},
		&cli.StringFlag{
			Name:  "dek-file",
			Usage: "File holding the DEK as raw bytes, hex or base64",
		},
		&cli.StringFlag{
			Name:  "passphrase",
			Usage: "Derive the DEK from a passphrase with Argon2id (requires --salt)",
		},
		&cli.StringFlag{
			Name:  "salt",
			Usage: "Hex Argon2id salt, at least 16 bytes",
		},
		&cli.StringFlag{
			Name:  "master-key",
			Usage: "Derive the DEK from a 32-byte master key with HKDF-SHA256",
		},
		&cli.StringFlag{
			Name:  "hkdf-info",
			Usage: "HKDF info label used with --master-key",
		},
	}
}

// loadConfig merges defaults, the --config file, VERILOG_* environment
// variables and the given flag values.
func loadConfig(c *cli.Context, flags map[string]any) (*config.Config, error) {
	cfg := config.Default()
	opts := []confloader.Option{confloader.WithFlags(flags)}
	if path := ParseGlobalFlags(c).ConfigFile; path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, usageErrorf("%v", err)
	}
	return cfg, nil
}

// keyFlagValues collects the key flags that were set on the command line.
func keyFlagValues(c *cli.Context) map[string]any {
	values := make(map[string]any)
	for flag, key := range keyFlagKeys {
		if c.IsSet(flag) {
			values[key] = c.String(flag)
		}
	}
	if c.IsSet("pubkey") && len(c.StringSlice("pubkey")) > 0 {
		values["keys.public_key_files"] = c.StringSlice("pubkey")
	}
	return values
}

// readKeys resolves the DEK and the public keys for reading logs.
func readKeys(c *cli.Context) ([]byte, ecsig.MapResolver, error) {
	cfg, err := loadConfig(c, keyFlagValues(c))
	if err != nil {
		return nil, nil, err
	}

	keys, err := cfg.Keys.Resolver()
	if err != nil {
		return nil, nil, usageErrorf("load public keys: %v", err)
	}
	if len(keys) == 0 {
		return nil, nil, usageErrorf("at least one --pubkey is required")
	}
	dek, err := cfg.Keys.LoadDEK()
	if err != nil {
		return nil, nil, usageErrorf("%v", err)
	}
	return dek, keys, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
