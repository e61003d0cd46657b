package main

import (
	"encoding/hex"
	"fmt"

	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/urfave/cli"
)

func newKeyCommands() []cli.Command {
	return []cli.Command{
		{
			Name:   "genkey",
			Usage:  "generate a validator key pair",
			Action: genKey,
		},
		{
			Name:      "pubkey",
			Usage:     "derive the public key for a hex-encoded private key",
			ArgsUsage: "<priv-hex>",
			Action:    pubKey,
		},
	}
}

func genKey(ctx *cli.Context) error {
	priv, err := keys.NewPrivateKey()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Printf("private: %s\n", hex.EncodeToString(priv.Bytes()))
	fmt.Printf("public:  %s\n", hex.EncodeToString(priv.PublicKey().Bytes()))
	return nil
}

func pubKey(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("usage: dbftnode pubkey <priv-hex>", 1)
	}
	b, err := hex.DecodeString(ctx.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	priv, err := keys.NewPrivateKeyFromBytes(b)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Println(hex.EncodeToString(priv.PublicKey().Bytes()))
	return nil
}
