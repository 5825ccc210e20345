package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"cryptofolio/src/api"
	"cryptofolio/src/config"
	"cryptofolio/src/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./settings")
	if err != nil {
		log.Println(err, "Error while loading config")
		return
	}
	errC, err := run(cfg)
	if err != nil {
		log.Println(err, "Couldn't run")
		return
	}

	if err := <-errC; err != nil {
		log.Println(err, "Error while running")
	}
}

func run(cfg *config.Config) (<-chan error, error) {
	errC := make(chan error, 1)

	var httpServer *http.Server
	if cfg.Service.Type == config.API {
		server, err := api.NewServer(cfg)
		if err != nil {
			return nil, err
		}
		httpServer = api.NewHTTPServer(server)
	} else {
		server, err := worker.NewServer(cfg)
		if err != nil {
			return nil, err
		}
		httpServer = worker.NewHTTPServer(server)
	}

	go func() {
		log.Println("Starting server on", httpServer.Addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()
	return errC, nil
}
