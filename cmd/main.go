package main

import (
	"fmt"
	"log"
	"os"

	engagement "github.com/Brunux-hub/albru-engagement"
	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Albru wraps the root Cobra command for the CLI.
type Albru struct {
	cmd *cobra.Command
}

// albruInstance carries the runtime service and its configuration into
// the subcommands.
type albruInstance struct {
	engagement *engagement.Engagement
	cnf        *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

func preRun(app *albruInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			configFile = "albru.json"
		}
		if err := config.InitConfig(configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		service, err := setupEngagement(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.engagement = service
		app.cnf = cnf

		return nil
	}
}

func setupEngagement(cfg *config.Configuration) (*engagement.Engagement, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	service, err := engagement.NewEngagement(db)
	if err != nil {
		return nil, fmt.Errorf("error creating engagement service: %v", err)
	}
	return service, nil
}

// NewCLI builds the command tree: server, workers and migrations.
func NewCLI() *Albru {
	var configFile string
	b := &albruInstance{}

	var rootCmd = &cobra.Command{
		Use:   "albru",
		Short: "Lead engagement lifecycle coordinator",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./albru.json", "Configuration file for the coordinator")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Albru{cmd: rootCmd}
}

func (w Albru) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
