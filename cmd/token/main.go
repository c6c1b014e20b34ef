// Command token mints an access token signed with JWT_SECRET, for webhook
// senders and back-office scripts.
//
//	token -role service_role
//	token -role admin -sub 6f1c...
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/policy"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	role := flag.String("role", string(policy.RoleServiceRole), "authenticated, admin or service_role")
	sub := flag.String("sub", "", "identity id (required unless service_role)")
	ttl := flag.Int("ttl", cfg.AccessTokenTTLMin, "lifetime in minutes")
	flag.Parse()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	r := policy.Role(*role)
	if !r.Valid() || r == policy.RoleAnon {
		log.Fatalf("unknown role %q", *role)
	}
	if r != policy.RoleServiceRole && *sub == "" {
		log.Fatal("-sub is required for this role")
	}

	mgr := auth.NewJWTManager(auth.JWTConfig{Issuer: cfg.JWTIssuer, Secret: cfg.JWTSecret, AccessTTLMin: *ttl})
	tok, exp, err := mgr.Sign(*sub, r)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Fprintln(os.Stderr, "expires", exp.Format("2006-01-02 15:04:05 MST"))
	fmt.Println(tok)
}
