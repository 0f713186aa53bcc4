package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/atm-services/configs"
	"github.com/avvvet/atm-services/internal/atmsvc/broker"
	atmconfig "github.com/avvvet/atm-services/internal/atmsvc/config"
	"github.com/avvvet/atm-services/internal/atmsvc/db"
	handlers "github.com/avvvet/atm-services/internal/atmsvc/handlers"
	"github.com/avvvet/atm-services/internal/atmsvc/service"
	"github.com/avvvet/atm-services/internal/atmsvc/store"
	mongodb "github.com/avvvet/atm-services/internal/db"
	nats "github.com/avvvet/atm-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "atm"

func main() {
	config.LoadEnv(SERVICE_NAME)

	cfg, err := atmconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.Logging(SERVICE_NAME+"_service_"+cfg.MachineID, cfg.LogDir, cfg.LogLevel)

	instanceId, err := config.CreateUniqueInstance(SERVICE_NAME)
	if err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	memStore := store.NewMemoryStore()

	// accounts and cards
	var accountStore service.AccountRepository = memStore
	var cardStore service.CardRepository = memStore
	if cfg.PostgresURL != "" {
		dbpool, err := db.Connect(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer db.ClosePool()
		if err := store.EnsureSchema(ctx, dbpool); err != nil {
			log.Fatalf("Failed to prepare DB schema: %v", err)
		}
		log.Printf("pg connection established successfully")

		accountStore = store.NewAccountStore(dbpool)
		cardStore = store.NewCardStore(dbpool)
	} else {
		log.Warn("POSTGRES_URL not set, accounts and cards are kept in memory")
	}

	// money boxes
	var machineStore service.MachineRepository = memStore
	if cfg.MongoURI != "" {
		mdb, err := mongodb.ConnectToDB(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongodb.Disconnect(mdb)
		log.Printf("mongodb connection established successfully")

		machineStore = store.NewMachineStore(mdb)
	} else {
		log.Warn("MONGODB_URI not set, money boxes are kept in memory")
	}

	policy := service.DepositRequirePin
	if !cfg.DepositRequirePin {
		policy = service.DepositCardOnly
	}

	accountService := service.NewAccountService(accountStore)
	cardService := service.NewCardService(cardStore, accountService, service.NewSha3Digester(cfg.PinPepper))
	moneyBoxService := service.NewMoneyBoxService(machineStore)
	cashMachineService := service.NewCashMachineService(cardService, accountService, moneyBoxService, policy)

	machine, err := moneyBoxService.LoadMachine(ctx, cfg.MachineID, cfg.Denominations)
	if err != nil {
		log.Fatalf("Failed to load machine %s: %v", cfg.MachineID, err)
	}
	log.Infof("machine %s ready, deposit policy %s, stock %s", machine.ID, policy, machine.Snapshot())

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+" service "+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// one instance per machine handles each request
	b := broker.NewBroker(n.Conn, accountService, cardService, moneyBoxService, cashMachineService, cfg.MachineID)
	sub, err := b.QueueSubscribe(broker.ServiceTopic, "atm."+cfg.MachineID)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	if cfg.StatusInterval > 0 {
		go b.RunHeartbeat(heartbeatCtx, instanceId, cfg.StatusInterval)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CorsOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cfg.Port, accountService, cardService, moneyBoxService, cashMachineService)
	if err := h.InitAuth(cfg.JWTSecret); err != nil {
		log.Fatalf("Failed to init auth: %v", err)
	}
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	stopHeartbeat()
	sub.Unsubscribe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
