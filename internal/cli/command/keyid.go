package command

import (
	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// KeyIDCommand returns the keyid command.
func KeyIDCommand() *cli.Command {
	return &cli.Command{
		Name:      "keyid",
		Usage:     "Print the key id of PEM public keys",
		ArgsUsage: "PUBKEY.pem...",
		Action:    runKeyID,
	}
}

type keyIDResult struct {
	Path  string `json:"path" yaml:"path"`
	KeyID string `json:"keyId" yaml:"keyId"`
}

func runKeyID(c *cli.Context) error {
	if c.NArg() == 0 {
		return usageErrorf("keyid requires at least one public key file")
	}

	out := make([]keyIDResult, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		pub, err := ecsig.LoadPublicKeyFile(path)
		if err != nil {
			return usageErrorf("%v", err)
		}
		id, err := ecsig.KeyID(pub)
		if err != nil {
			return usageErrorf("%s: %v", path, err)
		}
		out = append(out, keyIDResult{Path: path, KeyID: id})
	}
	return render(c, out)
}
