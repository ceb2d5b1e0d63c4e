package main

import (
	"log"
	"os"
	"sort"

	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:      "config",
	EnvVars:   []string{"CONFIG_PATH"},
	Value:     "configs/config.yaml",
	TakesFile: true,
	Usage:     "path to the service config",
}

func main() {
	app := &cli.App{
		Name:  "rentalctl",
		Usage: "operator tool for the rentalhub service",
		Description: `rentalctl works directly against the configured database.

   rentalctl token issues a bearer token for an existing user (development only).
   rentalctl user create registers a user.
   rentalctl backup writes a database snapshot into backup.storage_path.
   rentalctl export writes a user's rentals into an .xlsx file.`,
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			tokenCmd,
			userCmd,
			backupCmd,
			exportCmd,
		},
	}

	sort.Sort(cli.CommandsByName(app.Commands))
	for _, c := range app.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
