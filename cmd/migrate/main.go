package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"omnivault/pkg/config"
)

func main() {
	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "down") {
		log.Fatal("usage: migrate up|down [migrations dir]")
	}
	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	path := os.Getenv("OMNIVAULT_CONFIG")
	if path == "" {
		path = "configs/omnivault.yaml"
	}
	settings, err := config.Load(path)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	config.SetupLogger(config.LogSettings{Level: settings.Log.Level, Format: "text"})

	db := config.OpenDB(settings.Database)
	switch os.Args[1] {
	case "up":
		err = config.ExecuteMigrations(db, dir)
	case "down":
		err = config.RollbackMigration(db, dir)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", os.Args[1], err)
	}
	log.Infof("Migration %s completed", os.Args[1])
}
