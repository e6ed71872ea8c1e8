package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Taxonomy tree
		{
			ID: "001_taxonomy_nodes",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&TaxonomyNode{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("taxonomy_nodes")
			},
		},

		// Migration 002: Videos and their taxonomy tags
		{
			ID: "002_videos_and_tags",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Video{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&VideoTag{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("video_tags", "videos")
			},
		},

		// Migration 003: Instructor credibility
		{
			ID: "003_instructors",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Instructor{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("instructors")
			},
		},

		// Migration 004: Feedback and derived profiles
		{
			ID: "004_feedback_and_profiles",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&UserFeedback{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&UserProfile{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("user_profiles", "user_feedback")
			},
		},
	})

	return m.Migrate()
}
