package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/Brunux-hub/albru-engagement/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error: %v", err)
		return nil, err
	}
	err = Migrate(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate bootstraps the albru schema. The engagement core assumes this
// fixed schema; it never probes for columns at query time.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS albru`)
	if err != nil {
		return err
	}
	err = createLeadTable(db)
	if err != nil {
		return err
	}
	err = createLeaseTable(db)
	if err != nil {
		return err
	}
	return nil
}

// createLeadTable creates the PostgreSQL table for the Lead struct.
// Only lifecycle fields live here; the surrounding CRM owns the rest of
// the lead record.
func createLeadTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS albru.leads (
			id SERIAL PRIMARY KEY,
			lead_id TEXT NOT NULL UNIQUE,
			dispatch_status TEXT NOT NULL DEFAULT 'none',
			worker_status TEXT NOT NULL DEFAULT 'none',
			assigned_worker TEXT,
			dispatched_at TIMESTAMP,
			opened_at TIMESTAMP,
			last_activity_at TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating leads table: %v", err)
	}
	return err
}

// createLeaseTable creates the PostgreSQL table for the Lease struct.
// One row per lead (lead_id is the key); expired rows stay in place
// until overwritten or released.
func createLeaseTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS albru.leases (
			id SERIAL PRIMARY KEY,
			lead_id TEXT NOT NULL UNIQUE,
			holder TEXT NOT NULL,
			token TEXT NOT NULL,
			acquired_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		log.Printf("Error creating leases table: %v", err)
	}
	return err
}
