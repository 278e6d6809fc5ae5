// Command fakesynapse serves a stand-in for the Synapse shared-secret
// registration API so the bridge can be run locally.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/krispingal/regbridge/internal/infrastructure"
	"github.com/krispingal/regbridge/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	port := flag.String("port", "8008", "Port to run the fake homeserver on")
	secret := flag.String("secret", "", "registration_shared_secret to verify MACs with")
	existing := flag.String("existing-user", "", "Username to seed as already registered")
	flag.Parse()
	if *secret == "" {
		log.Fatal("-secret is required")
	}

	logger, err := infrastructure.NewLogger("debug")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer logger.Sync()

	hs := testutil.NewHomeserver(*secret, logger)
	if *existing != "" {
		hs.AddUser(*existing, "")
	}
	handler := h2c.NewHandler(hs.Handler(), &http2.Server{})

	logger.Info("Fake homeserver listening", zap.String("port", *port))
	if err := http.ListenAndServe(":"+*port, handler); err != nil {
		logger.Fatal("Error starting fake homeserver", zap.Error(err))
	}
}
