package main

import (
	"fmt"
	"os"

	"github.com/livemap/client/config"
	"github.com/urfave/cli/v2"
)

func main() {
	defaultRPC := os.Getenv("LIVEMAP_RPC")
	if defaultRPC == "" {
		defaultRPC = "127.0.0.1:6862"
	}

	app := cli.NewApp()
	app.Name = "livemap"
	app.Usage = "A headless client for live collaborative map editing sessions."
	app.Version = config.BuildVersion
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "node",
			Aliases: []string{"n"},
			Value:   defaultRPC,
			Usage:   "the RPC endpoint of a running client, and the default value is read from environment variable LIVEMAP_RPC",
		},
	}
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		{
			Name:    "connect",
			Aliases: []string{"c"},
			Usage:   "Join a live editing session and relay chat from stdin",
			Action:  connectCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "config",
					Usage: "the TOML configuration file",
				},
				&cli.StringFlag{
					Name:    "host",
					Aliases: []string{"H"},
					Usage:   "the live server host",
				},
				&cli.IntFlag{
					Name:    "port",
					Aliases: []string{"p"},
					Usage:   "the live server port",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "the name shown to other editors",
				},
				&cli.StringFlag{
					Name:  "password",
					Usage: "the session password",
				},
				&cli.StringFlag{
					Name:  "color",
					Usage: "the cursor color as #rrggbb or #rrggbbaa",
				},
				&cli.StringFlag{
					Name:  "transport",
					Usage: "tcp or quic",
				},
				&cli.IntFlag{
					Name:  "rpc-port",
					Usage: "serve the local RPC endpoint on this port",
				},
				&cli.StringFlag{
					Name:  "record",
					Usage: "record every frame of the session into this directory",
				},
				&cli.StringFlag{
					Name:    "log",
					Aliases: []string{"l"},
					Value:   "info",
					Usage:   "the log level, error, info, verbose, debug or a number",
				},
				&cli.StringFlag{
					Name:  "filter",
					Usage: "the RE2 regex pattern to filter log",
				},
			},
		},
		{
			Name:   "sessions",
			Usage:  "List the recorded sessions",
			Action: listSessionsCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Usage:   "the recorder directory",
				},
			},
		},
		{
			Name:   "replay",
			Usage:  "Decode and print the frames of a recorded session",
			Action: replayCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Usage:   "the recorder directory",
				},
				&cli.StringFlag{
					Name:    "session",
					Aliases: []string{"s"},
					Usage:   "the session id",
				},
				&cli.Uint64Flag{
					Name:  "offset",
					Value: 0,
					Usage: "the first frame sequence",
				},
				&cli.Uint64Flag{
					Name:  "count",
					Value: 100,
					Usage: "the maximum number of frames",
				},
			},
		},
		{
			Name:   "nodeid",
			Usage:  "Pack a tile position into a node id, or unpack a node id",
			Action: nodeIdCmd,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "x",
					Usage: "the tile x",
				},
				&cli.IntFlag{
					Name:  "y",
					Usage: "the tile y",
				},
				&cli.BoolFlag{
					Name:  "underground",
					Usage: "the node is below ground level",
				},
				&cli.Uint64Flag{
					Name:  "id",
					Usage: "the node id to unpack",
				},
			},
		},
		{
			Name:   "getinfo",
			Usage:  "Get the session status from a running client",
			Action: getInfoCmd,
		},
		{
			Name:   "say",
			Usage:  "Send a chat message through a running client",
			Action: sayCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "message",
					Aliases: []string{"m"},
					Usage:   "the chat message",
				},
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
	}
}
