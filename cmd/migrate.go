package main

import (
	"log"

	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/database"
	"github.com/spf13/cobra"
)

func migrateCommands(_ *albruInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Printf("Error fetching config: %v", err)
				return
			}

			db, err := database.ConnectDB(cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Printf("Error closing database: %v", err)
				}
			}()

			log.Println("Schema applied")
		},
	}

	return cmd
}
