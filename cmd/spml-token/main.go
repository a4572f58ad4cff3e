package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/noah-isme/spml-provisioner/internal/service"
	"github.com/noah-isme/spml-provisioner/pkg/config"
)

// spml-token mints a bearer token for the feed account, or hashes a password for it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	login := flag.String("login", cfg.SPML.ServiceLogin, "login the token is issued for")
	secret := flag.String("secret", cfg.JWT.Secret, "HS256 signing secret")
	expiry := flag.Duration("expiry", cfg.JWT.Expiration, "token lifetime")
	hash := flag.String("hash", "", "print the bcrypt hash of this password instead of a token")
	flag.Parse()

	if *hash != "" {
		hashed, err := service.HashPassword(*hash)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hashed)
		return
	}

	auth := service.NewAuthService(nil, service.AuthConfig{
		ServiceLogin: *login,
		Secret:       *secret,
		Expiry:       *expiry,
	}, nil)
	token, err := auth.IssueToken(*login)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(token); err != nil {
		log.Fatalf("write token: %v", err)
	}
}
