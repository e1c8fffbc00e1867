package models

import (
	"log"

	"github.com/zawbuild/sitebooks_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Site{}, &Estimate{}, &Category{},
		&LineItem{}, &ActualEntry{},
		&LedgerEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
