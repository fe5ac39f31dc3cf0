package main

import (
	"content-gate/internal/app/server"
	"content-gate/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
