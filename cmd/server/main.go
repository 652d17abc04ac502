package main

import (
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/internal/server"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	handler, err := server.NewHandler(log, server.Options{})
	if err != nil {
		log.Fatal("handler setup failed", zap.Error(err))
	}

	log.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
