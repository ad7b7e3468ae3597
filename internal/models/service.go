package models

// Service is a catalog entry loaded from configs/services.yaml.
type Service struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Price           int64  `yaml:"price"`
	SortOrder       int    `yaml:"sort_order"`
	IsActive        bool   `yaml:"is_active"`
}
