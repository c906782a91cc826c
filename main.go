package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag

	Serve    ServeCmd    `cmd:"" help:"Run the HTTP API and the plan scheduler." default:"1"`
	Migrate  MigrateCmd  `cmd:"" help:"Apply database migrations."`
	Sweep    SweepCmd    `cmd:"" help:"Run one scheduler job once and print its result."`
	Estimate EstimateCmd `cmd:"" help:"Estimate calories and macros for a food portion."`
	User     struct {
		Add UserAddCmd `cmd:"" help:"Create a user."`
	} `cmd:"" help:"Manage users."`
	Token struct {
		Create TokenCreateCmd `cmd:"" help:"Issue an API token for a user."`
	} `cmd:"" help:"Manage API tokens."`
	Keyring struct {
		Set    KeyringSetCmd    `cmd:"" help:"Store the LLM API key in the OS keyring."`
		Delete KeyringDeleteCmd `cmd:"" help:"Remove the LLM API key from the OS keyring."`
		Status KeyringStatusCmd `cmd:"" help:"Report whether an LLM API key is stored."`
	} `cmd:"" help:"Manage the LLM API key in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("gymthon"),
		kong.Description("Fitness coaching backend with scheduled AI diet and workout plans"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
