package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/pkg/jwt"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to config file")
	client     = flag.String("client", "", "Client name embedded in the token")
	expire     = flag.Int("expire-hours", -1, "Token lifetime in hours, 0 for no expiry (default: jwt.expire_hours)")
)

// 为 API 调用方签发 Bearer token
func main() {
	flag.Parse()

	if *client == "" {
		fmt.Fprintln(os.Stderr, "usage: token -client <name> [-expire-hours N]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is empty, API authentication is disabled")
	}

	hours := cfg.JWT.ExpireHours
	if *expire >= 0 {
		hours = *expire
	}

	token, err := jwt.GenerateToken(*client, cfg.JWT.Secret, hours)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}
