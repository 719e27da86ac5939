package main

import (
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/klokku/appointments/internal/app"
	log "github.com/sirupsen/logrus"
)

func init() {
	// A missing .env file is fine
	_ = godotenv.Load()

	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	if err := app.NewCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
