// Command petbot runs the pet-care Telegram assistant.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/m3rciful/petbot/bot/app"
	"github.com/m3rciful/petbot/core/buildinfo"
	"github.com/m3rciful/petbot/core/cmd"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "-version") {
		fmt.Println("petbot", buildinfo.String())
		return
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("reading .env: %v", err)
	}

	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Printf("petbot: %v", err)
		os.Exit(1)
	}
}
