// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lco77/netops-portal/internal/api"
	"github.com/lco77/netops-portal/internal/config"
	"github.com/lco77/netops-portal/internal/infra"
	"github.com/lco77/netops-portal/internal/resolver"
	"github.com/lco77/netops-portal/internal/templates"
)

var version = "dev"

// @title NetOps Portal API
// @version 1.0
// @description Session-authenticated portal for DNS lookups and asynchronous network device jobs.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @schemes http https
func main() {
	// --- Load configuration First ---
	if err := config.LoadConfig(); err != nil {
		// Use a basic logger here as the configured one isn't ready yet
		log.New(os.Stderr).Fatalf("Failed to load configuration: %v", err)
	}
	cfg := &config.AppConfig

	config.ConfigureLogging(cfg.LogLevel)
	log.Infof("Configuration loaded successfully. Log level set to '%s'.", cfg.LogLevel)

	log.Debugf("API Port: %s", cfg.APIPort)
	log.Debugf("Auth backend: %s", cfg.AuthBackend)
	log.Debugf("Broker: %s (queue %s)", cfg.BrokerType, cfg.TaskQueue)
	log.Debugf("TLS Enabled: %t", cfg.TLSEnable)
	if cfg.UsesDefaultSecret() {
		log.Warn("Using default SECRET_KEY. Change the SECRET_KEY environment variable for production!")
	}
	if cfg.DevMode {
		log.Warn("DEV MODE ACTIVE: in-process Redis, mock directory and embedded worker. Do not use in production.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inf, err := infra.Setup(ctx, cfg, true)
	if err != nil {
		log.Fatalf("Infrastructure setup failed: %v", err)
	}
	defer inf.Close()

	// --- Embedded worker (dev mode or EMBEDDED_WORKER=true) ---
	workerDone := make(chan struct{})
	if cfg.EmbeddedWorker {
		w, err := inf.Worker(cfg)
		if err != nil {
			log.Fatalf("Failed to build embedded worker: %v", err)
		}
		go func() {
			w.Run(ctx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	// --- Initialize Gin router ---
	switch strings.ToLower(cfg.GinMode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	log.Infof("Gin running in '%s' mode", cfg.GinMode)

	router := gin.Default()

	// Configure trusted proxies
	if cfg.TrustedProxies == "nil" {
		log.Info("Proxy trust disabled (TRUSTED_PROXIES=nil)")
		_ = router.SetTrustedProxies(nil)
	} else if cfg.TrustedProxies != "" {
		proxyList := strings.Split(cfg.TrustedProxies, ",")
		for i, proxy := range proxyList {
			proxyList[i] = strings.TrimSpace(proxy)
		}
		log.Infof("Setting trusted proxies: %v", proxyList)
		if err := router.SetTrustedProxies(proxyList); err != nil {
			log.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
		}
	} else {
		log.Warn("All proxies are trusted (default). Set TRUSTED_PROXIES=nil to disable proxy trust or provide a comma-separated list of trusted proxy IPs.")
	}

	if err := templates.LoadTemplates(router); err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	handlers := api.NewHandlers(api.Deps{
		Directory:    inf.Directory,
		Sessions:     inf.Sessions,
		Vault:        inf.Issuer.Vault(),
		Tasks:        inf.TaskClient(cfg),
		Resolver:     resolver.New(5 * time.Second),
		CookieName:   cfg.SessionCookieName,
		CookieSecure: cfg.SessionCookieSecure || cfg.TLSEnable,
		DeviceRoles:  cfg.DeviceRoleList(),
		Version:      version,
	})
	api.SetupRoutes(router, handlers)

	// --- Start the server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSEnable {
			if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
				log.Fatalf("TLS is enabled but TLS_CERT_FILE or TLS_KEY_FILE is not set in config.")
			}
			log.Infof("Starting HTTPS server on %s", srv.Addr)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			log.Infof("Starting HTTP server on %s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown error: %v", err)
	}
	<-workerDone
	log.Info("Stopped")
}
