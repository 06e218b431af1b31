package migration_1

import (
	"fmt"

	"gorm.io/gorm"
)

type PredictionRun struct {
	ModelFormat string `gorm:"size:20"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&PredictionRun{}, "ModelFormat"); err != nil {
		return fmt.Errorf("error adding ModelFormat column: %w", err)
	}

	if err := db.Model(&PredictionRun{}).
		Where("model_format IS NULL").
		Update("model_format", "pipeline").Error; err != nil {
		return fmt.Errorf("error setting default value for ModelFormat: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&PredictionRun{}, "ModelFormat"); err != nil {
		return fmt.Errorf("error dropping ModelFormat column: %w", err)
	}

	return nil
}
