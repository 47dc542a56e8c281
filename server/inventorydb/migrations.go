package inventorydb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE defined_product(
			id INTEGER PRIMARY KEY,
			pid INT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			pack INT NOT NULL,
			created_at INT,
			updated_at INT
		);
		CREATE INDEX idx_defined_product_pid ON defined_product (pid);

		CREATE TABLE scanned_item(
			id INTEGER PRIMARY KEY,
			pid INT NOT NULL,
			serial TEXT NOT NULL,
			name TEXT NOT NULL,
			count INT NOT NULL,
			net_kg REAL NOT NULL,
			packed_on INT,
			best_before INT,
			created_at INT,
			updated_at INT
		);
		CREATE UNIQUE INDEX idx_scanned_item_serial ON scanned_item (serial);
		CREATE INDEX idx_scanned_item_best_before ON scanned_item (best_before);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE sales_floor_entry(
			id INTEGER PRIMARY KEY,
			pid INT NOT NULL,
			name TEXT NOT NULL,
			count INT,
			weight REAL,
			expiry_date INT,
			created_at INT,
			updated_at INT
		);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		ALTER TABLE scanned_item ADD COLUMN synced_at INT;
		ALTER TABLE sales_floor_entry ADD COLUMN synced_at INT;
		CREATE INDEX idx_scanned_item_synced_at ON scanned_item (synced_at);
	`))

	return migs
}
