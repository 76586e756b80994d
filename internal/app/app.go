package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"

	"github.com/TenHe10/CruchCount/internal/cart"
	"github.com/TenHe10/CruchCount/internal/catalog"
	"github.com/TenHe10/CruchCount/internal/config"
	"github.com/TenHe10/CruchCount/internal/controllers"
	"github.com/TenHe10/CruchCount/internal/logger"
	"github.com/TenHe10/CruchCount/internal/middleware"
)

type Server struct {
	srv   *http.Server
	ctx   context.Context
	store *catalog.Catalog
	Log   *logger.Logger
}

// NewServer creates a new Server instance with the provided context
func NewServer(ctx context.Context) *Server {
	server := new(Server)
	server.ctx = ctx
	return server
}

// Serve starts the server and blocks until an interrupt signal arrives
func (server *Server) Serve() {
	// create and initialize a new option instance
	option := config.NewOptions()
	option.ParseFlags()

	// get a new logger
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		log.Fatalln(err)
	}
	server.Log = nLogger

	// open and validate the catalog store
	store, err := catalog.New(server.ctx, option.DatabasePath(), option.MigrationsDir(), nLogger)
	if err != nil {
		log.Fatalln(err)
	}
	server.store = store

	// the cart holds an explicit reference to the current store
	basket := cart.New(store, nLogger)

	// switching stores constructs a fresh, fully validated catalog
	opener := func(ctx context.Context, path string) (controllers.Storage, error) {
		return catalog.New(ctx, path, option.MigrationsDir(), nLogger)
	}

	basecontr := controllers.NewBaseController(server.ctx, store, basket, opener, nLogger)
	reqLog := middleware.NewRequestLogger(nLogger)

	// create router and mount routes
	r := chi.NewRouter()
	r.Use(reqLog.Handler)
	r.Mount("/", basecontr.Route())

	// configure and start the server
	server.srv = startServer(r, option.RunAddr())
	nLogger.Info("Server started")

	// Create a channel to receive interrupt signals (e.g., CTRL+C)
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)

	// Block execution until a signal is received
	<-stopChan
}

// Shutdown performs a graceful shutdown of the HTTP server and the store
func (server *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server.srv != nil {
		if err := server.srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}
	if server.store != nil {
		server.store.Close()
	}
	if server.Log != nil {
		server.Log.Info("Server gracefully stopped")
		server.Log.Sync()
	}
}

func startServer(router chi.Router, address string) *http.Server {
	const (
		readTimeout  = 5 * time.Second
		writeTimeout = 10 * time.Second
	)

	srv := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	return srv
}
