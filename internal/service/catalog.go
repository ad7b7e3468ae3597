package service

import (
	"sort"

	"avtomaster/internal/models"
)

// CatalogService answers duration and price questions about the shop's
// service list. Free-text repair descriptions are not in the catalog
// and fall back to the default duration.
type CatalogService struct {
	services        []models.Service
	byName          map[string]models.Service
	defaultDuration int
}

func NewCatalogService(services []models.Service, defaultDurationMinutes int) *CatalogService {
	if defaultDurationMinutes <= 0 {
		defaultDurationMinutes = models.DefaultServiceDuration
	}

	byName := make(map[string]models.Service, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}

	sorted := append([]models.Service(nil), services...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	return &CatalogService{
		services:        sorted,
		byName:          byName,
		defaultDuration: defaultDurationMinutes,
	}
}

func (s *CatalogService) DurationMinutesFor(serviceName string) int {
	if svc, ok := s.byName[serviceName]; ok && svc.DurationMinutes > 0 {
		return svc.DurationMinutes
	}
	return s.defaultDuration
}

func (s *CatalogService) PriceFor(serviceName string) (int64, bool) {
	svc, ok := s.byName[serviceName]
	if !ok || svc.Price <= 0 {
		return 0, false
	}
	return svc.Price, true
}

func (s *CatalogService) ActiveServices() []models.Service {
	var active []models.Service
	for _, svc := range s.services {
		if svc.IsActive {
			active = append(active, svc)
		}
	}
	return active
}
