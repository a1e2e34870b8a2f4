package command

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a P-256 signing key pair and a random DEK",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Directory for the generated files",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Base name of the generated files",
				Value: "verilog",
			},
			&cli.BoolFlag{
				Name:  "no-dek",
				Usage: "Do not generate a DEK file",
			},
		},
		Action: runKeygen,
	}
}

type keygenResult struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
	PublicKey  string `json:"publicKey" yaml:"publicKey"`
	KeyID      string `json:"keyId" yaml:"keyId"`
	DEKFile    string `json:"dekFile,omitempty" yaml:"dekFile,omitempty"`
}

func runKeygen(c *cli.Context) error {
	dir, name := c.String("out-dir"), c.String("name")
	if name == "" {
		return usageErrorf("--name must not be empty")
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return ioError(err)
	}
	privPEM, err := ecsig.MarshalPrivateKeyPEM(priv)
	if err != nil {
		return ioError(err)
	}
	pubPEM, err := ecsig.MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return ioError(err)
	}
	id, err := ecsig.KeyID(&priv.PublicKey)
	if err != nil {
		return ioError(err)
	}

	res := keygenResult{
		PrivateKey: filepath.Join(dir, name+".key.pem"),
		PublicKey:  filepath.Join(dir, name+".pub.pem"),
		KeyID:      id,
	}
	if err := writeNewFile(res.PrivateKey, privPEM, 0o600); err != nil {
		return err
	}
	if err := writeNewFile(res.PublicKey, pubPEM, 0o644); err != nil {
		return err
	}

	if !c.Bool("no-dek") {
		dek := make([]byte, aead.KeySize)
		if _, err := rand.Read(dek); err != nil {
			return ioError(err)
		}
		text := []byte(hex.EncodeToString(dek) + "\n")
		zero(dek)
		res.DEKFile = filepath.Join(dir, name+".dek")
		err := writeNewFile(res.DEKFile, text, 0o600)
		zero(text)
		if err != nil {
			return err
		}
	}

	loggerFrom(c).Info("generated key material", "keyId", id, "dir", dir)
	return render(c, res)
}

// writeNewFile writes data to path, refusing to replace an existing file.
func writeNewFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if os.IsExist(err) {
			return usageErrorf("%s already exists", path)
		}
		return ioError(err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return ioError(fmt.Errorf("write %s: %w", path, err))
	}
	if err := f.Close(); err != nil {
		return ioError(err)
	}
	return nil
}
