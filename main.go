package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/PublicLifeLab/gehl-backend/internal/config"
	"github.com/PublicLifeLab/gehl-backend/internal/datapoints"
	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/metrics"
	"github.com/PublicLifeLab/gehl-backend/internal/middleware"
	"github.com/PublicLifeLab/gehl-backend/internal/mirror"
	"github.com/PublicLifeLab/gehl-backend/internal/studies"
	"github.com/PublicLifeLab/gehl-backend/internal/users"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	db.Connect(cfg.Database)

	m, err := mirror.New(context.Background(), cfg.Mirror)
	if err != nil {
		log.Fatal("Failed to set up study mirror: ", err)
	}

	users.Init()
	studies.Init(m)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)

	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/users", users.SetupRoutes())
	r.Mount("/studies", studies.SetupRoutes())
	r.Mount("/locations", studies.SetupLocationRoutes())
	r.Mount("/surveys/{survey_id}/datapoints", datapoints.SetupRoutes())
	r.Mount("/surveys", studies.SetupSurveyRoutes())

	log.Printf("Server listening on port :%s...", cfg.Port)
	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
