package common

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ConnectDb() *gorm.DB {
	dbFile := os.Getenv("sqlite_db")
	log.Println("attemptConnectDb: sqlite_db from env (raw):", dbFile)
	if dbFile == "" {
		log.Println("sqlite_db not set")
		return nil
	}

	// TranslateError makes unique-constraint violations surface as
	// gorm.ErrDuplicatedKey, which the modules treat as the authoritative
	// duplicate signal under concurrent writes.
	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Println("Error opening sqlite db: " + err.Error())
		return nil
	}
	log.Println("opened sqlite db at:", dbFile)
	return db
}
