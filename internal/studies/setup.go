package studies

import (
	"log"

	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/mirror"
	"github.com/PublicLifeLab/gehl-backend/internal/schema"
)

// Mirror receives study documents on create and delete. Init replaces it.
var Mirror mirror.Mirror = mirror.Noop{}

// Init prepares the data_collection schema. users.Init must run first; study
// tables reference app_auth.users.
func Init(m mirror.Mirror) {
	if err := db.EnsureSchema(db.DB, schema.Namespace); err != nil {
		log.Fatal("Failed to ensure schema "+schema.Namespace+": ", err)
	}

	if err := db.EnsureExtension(db.DB, "postgis"); err != nil {
		log.Fatal("Failed to enable postgis extension: ", err)
	}

	if err := db.DB.AutoMigrate(
		&Study{},
		&Location{},
		&Survey{},
		&SurveyTable{},
		&StudyAccess{},
	); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}

	if m != nil {
		Mirror = m
	}
}
