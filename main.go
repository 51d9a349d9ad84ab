package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/hamyon/backend/src/budget"
	"github.com/username/hamyon/backend/src/config"
	"github.com/username/hamyon/backend/src/database"
	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/handlers"
	"github.com/username/hamyon/backend/src/ledger"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/services"
	"github.com/username/hamyon/backend/src/store"
	"golang.org/x/time/rate"
)

var limiter *rate.Limiter

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
			} else if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Hamyon ledger backend starting...", "baseCurrency", config.Cfg.BaseCurrency)

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	limiter = rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	ledgerStore := store.NewSQLiteStore(database.DB)

	resolver := fx.NewResolver(ledgerStore, config.Cfg.BaseCurrency, config.Cfg.FxOverrideEpsilon)
	engine := ledger.NewEngine(ledgerStore, resolver, config.Cfg.BaseCurrency)
	debtLedger := ledger.NewDebtLedger(ledgerStore, resolver, engine, config.Cfg.BaseCurrency, config.Cfg.FxOverrideEpsilon)

	notifier := services.NewBudgetNotifier()
	reconciler := budget.NewReconciler(notifier)
	budgetService := budget.NewService(ledgerStore, reconciler, engine.Guard())

	accountHandler := handlers.NewAccountHandler(engine)
	txHandler := handlers.NewTransactionHandler(engine, budgetService)
	debtHandler := handlers.NewDebtHandler(debtLedger)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	rateHandler := handlers.NewRateHandler(resolver)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS(config.Cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Hamyon ledger backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", accountHandler.HandleListAccounts)
		r.Post("/accounts", accountHandler.HandleCreateAccount)
		r.Patch("/accounts/{id}", accountHandler.HandleUpdateAccount)
		r.Post("/accounts/{id}/archive", accountHandler.HandleArchiveAccount)

		r.Get("/transactions", txHandler.HandleListTransactions)
		r.Post("/transactions", txHandler.HandleCreateTransaction)
		r.Patch("/transactions/{id}", txHandler.HandleUpdateTransaction)
		r.Delete("/transactions/{id}", txHandler.HandleDeleteTransaction)

		r.Get("/debts", debtHandler.HandleListDebts)
		r.Post("/debts", debtHandler.HandleOpenDebt)
		r.Patch("/debts/{id}", debtHandler.HandleUpdateDebt)
		r.Delete("/debts/{id}", debtHandler.HandleDeleteDebt)
		r.Post("/debts/{id}/payments", debtHandler.HandleRecordPayment)
		r.Get("/debts/{id}/payments", debtHandler.HandleListPayments)
		r.Post("/debts/{id}/repayment-currency", debtHandler.HandleSetRepaymentCurrency)

		r.Get("/budgets", budgetHandler.HandleListBudgets)
		r.Post("/budgets", budgetHandler.HandleCreateBudget)
		r.Patch("/budgets/{id}", budgetHandler.HandleUpdateBudget)
		r.Delete("/budgets/{id}", budgetHandler.HandleDeleteBudget)
		r.Post("/budgets/reconcile", budgetHandler.HandleReconcileBudgets)

		r.Get("/rates", rateHandler.HandleGetRate)
		r.Post("/rates/override", rateHandler.HandleOverrideRate)
		r.Post("/rates/equivalents", rateHandler.HandleGetEquivalents)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
