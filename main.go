//go:generate pkger
package main

import (
	"log"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/kelseyhightower/envconfig"
	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/routes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	var config models.Config
	config = config.New()

	err := envconfig.Process("", &config)
	if err != nil {
		log.Fatal(err.Error())
	}
	config.Verify()

	var db *gorm.DB
	var dbErr error

	switch strings.ToLower(config.DbType) {
	case "sqlite":
		db, dbErr = gorm.Open(sqlite.Open(config.DbDSN), &gorm.Config{})
	case "postgres":
		db, dbErr = gorm.Open(postgres.Open(config.DbDSN), &gorm.Config{})
	case "mysql":
		db, dbErr = gorm.Open(mysql.Open(config.DbDSN), &gorm.Config{})
	default:
		log.Fatalf("Unknown DbType '%s'", config.DbType)
	}
	if dbErr != nil {
		log.Fatalf("Failed to connect to database: %s", dbErr)
	}

	// Migrate the schema
	if err := db.AutoMigrate(&models.Subscription{}); err != nil {
		log.Fatalf("Failed to run database migrations for Subscription model: %s", err)
	}

	bus := EventBus.New()

	startServer(&config, routes.New(&config, db, &bus))
}
