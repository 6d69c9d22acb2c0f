package reforms

import (
	"log"

	"github.com/ReformAtlas/RA-Backend/internal/db"
	"gorm.io/gorm/clause"
)

func Init() {
	if err := db.EnsureSchema(db.DB, "atlas"); err != nil {
		log.Fatal("Failed to ensure schema atlas: ", err)
	}

	if err := db.DB.AutoMigrate(
		&TopLevelDivision{},
		&Place{},
		&Category{},
		&ReformType{},
		&Source{},
		&Reform{},
		&ReformSource{},
		&Citation{},
		&PolicyDocument{},
		&DistinguishedPair{},
		&SavedFilter{},
	); err != nil {
		log.Fatal("Failed to auto-migrate atlas tables: ", err)
	}

	// Seed the division table from the built-in code tables; idempotent.
	divisions := AllDivisions()
	if err := db.DB.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(divisions, 100).Error; err != nil {
		log.Fatal("Failed to seed divisions: ", err)
	}

	log.Println("Reforms module initialized")
}
