// Command seed creates a demo author, location, study and survey so a fresh
// database has something to collect data points against.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/config"
	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/mirror"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/PublicLifeLab/gehl-backend/internal/studies"
	"github.com/PublicLifeLab/gehl-backend/internal/users"
	"github.com/joho/godotenv"
)

var (
	email    = flag.String("email", "demo@gehl.local", "Author email")
	password = flag.String("password", "GehlDemo2024!", "Author password, used only when the author is created")
	minimal  = flag.Bool("minimal", false, "Provision a gender+location study instead of the full field set")
	location = flag.String("location", `{"type":"Point","coordinates":[12.5768,55.6786]}`, "Location GeoJSON")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("config: %v", err)
	}

	ctx := context.Background()
	db.Connect(cfg.Database)
	users.Init()
	m, err := mirror.New(ctx, cfg.Mirror)
	if err != nil {
		fatalf("mirror: %v", err)
	}
	studies.Init(m)

	author, err := users.FindByEmail(ctx, *email)
	if errors.Is(err, users.ErrUserNotFound) {
		author, err = users.CreateUser(ctx, users.Registration{
			Email: *email, Password: *password, ConfirmPassword: *password,
			FirstName: "Demo", LastName: "Author",
		})
	}
	if err != nil {
		fatalf("author: %v", err)
	}

	shape := schema.ShapeFull
	if *minimal {
		shape = schema.ShapeMinimal
	}
	study, err := studies.CreateStudy(ctx, studies.NewStudy{
		UserID:          author.UserID,
		Title:           "Demo stationary activity mapping",
		Type:            studies.TypeActivity,
		ProtocolVersion: "1.0",
		Fields:          shape.Fields(),
	})
	if err != nil {
		fatalf("study: %v", err)
	}

	loc, err := studies.CreateLocation(ctx, studies.NewLocation{
		Name:     "Demo square",
		Geometry: json.RawMessage(*location),
	})
	if err != nil {
		fatalf("location: %v", err)
	}

	start := time.Now().UTC().Truncate(time.Hour)
	survey, err := studies.CreateSurvey(ctx, studies.NewSurvey{
		StudyID:        study.StudyID,
		LocationID:     loc.LocationID,
		UserEmail:      *email,
		StartTime:      start,
		StopTime:       start.Add(time.Hour),
		Representation: "activity",
	})
	if err != nil {
		fatalf("survey: %v", err)
	}

	log.Printf("[seed] author   %s", author.UserID)
	log.Printf("[seed] study    %s (%s, table %s)", study.StudyID, shape, study.Table)
	log.Printf("[seed] location %s", loc.LocationID)
	log.Printf("[seed] survey   %s", survey.SurveyID)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "seed: "+format+"\n", args...)
	os.Exit(1)
}
