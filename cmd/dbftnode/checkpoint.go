package main

import (
	"fmt"

	"github.com/meridianchain/dbft/pkg/dbft"
	bolt "go.etcd.io/bbolt"
	"github.com/urfave/cli"
)

func newCheckpointCommands() []cli.Command {
	return []cli.Command{
		{
			Name:      "checkpoint",
			Usage:     "inspect a consensus checkpoint database",
			ArgsUsage: "<bolt-db-path>",
			Action:    inspectCheckpoint,
		},
	}
}

func inspectCheckpoint(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("usage: dbftnode checkpoint <bolt-db-path>", 1)
	}

	db, err := bolt.Open(ctx.Args().Get(0), 0600, nil)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	store, err := dbft.NewBoltStore(db, "consensus")
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	data, ok := dbft.CheckpointBytes(store)
	if !ok {
		fmt.Println("no checkpoint saved")
		return nil
	}
	fmt.Printf("checkpoint: %d bytes\n", len(data))
	return nil
}
