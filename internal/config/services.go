package config

import (
	"errors"
	"fmt"
	"strings"

	"grid-keeper/internal/models"
)

var ErrServiceNotFound = errors.New("service not found")

func normalizeService(svc *models.ServiceSpec) {
	svc.Name = strings.TrimSpace(svc.Name)
	if svc.Tier == "" {
		svc.Tier = models.TierApplication
	}
	svc.Tier = models.Tier(strings.ToLower(string(svc.Tier)))
	if svc.Install != nil && svc.Install.InstallDir == "" {
		svc.Install.InstallDir = svc.Name
	}
}

/**
 * Validate a service list
 * @param {[]models.ServiceSpec} svcs - Services in declaration order
 * @returns {error} All problems found, joined
 * @description
 * - Names must be non-empty and unique, ports in 1..65535
 * - Tier must be infrastructure or application
 * - Install specs need an artifact url and a resolvable archive format
 * - Start command must be set
 */
func ValidateServices(svcs []models.ServiceSpec) error {
	var errs []error
	seen := make(map[string]bool)
	for i, svc := range svcs {
		if svc.Name == "" {
			errs = append(errs, fmt.Errorf("services[%d]: name is required", i))
			continue
		}
		if seen[svc.Name] {
			errs = append(errs, fmt.Errorf("service '%s': duplicated name", svc.Name))
		}
		seen[svc.Name] = true
		if svc.Port <= 0 || svc.Port > 65535 {
			errs = append(errs, fmt.Errorf("service '%s': invalid port %d", svc.Name, svc.Port))
		}
		if svc.Tier != models.TierInfrastructure && svc.Tier != models.TierApplication {
			errs = append(errs, fmt.Errorf("service '%s': unknown tier '%s'", svc.Name, svc.Tier))
		}
		if svc.Start.Command == "" {
			errs = append(errs, fmt.Errorf("service '%s': start command is required", svc.Name))
		}
		if svc.Install != nil {
			if svc.Install.ArtifactURL == "" {
				errs = append(errs, fmt.Errorf("service '%s': artifact_url is required", svc.Name))
			} else if _, err := svc.Install.Format(); err != nil {
				errs = append(errs, fmt.Errorf("service '%s': %w", svc.Name, err))
			}
			if strings.ContainsAny(svc.Install.InstallDir, `/\`) || svc.Install.InstallDir == ".." {
				errs = append(errs, fmt.Errorf("service '%s': install_dir must be a plain directory name", svc.Name))
			}
		}
	}
	return errors.Join(errs...)
}

// Registry is the read-only table of known services.
type Registry struct {
	services []models.ServiceSpec
}

func NewRegistry(svcs []models.ServiceSpec) (*Registry, error) {
	list := make([]models.ServiceSpec, len(svcs))
	for i, svc := range svcs {
		list[i] = svc.Clone()
		normalizeService(&list[i])
	}
	if err := ValidateServices(list); err != nil {
		return nil, err
	}
	return &Registry{services: list}, nil
}

// Services returns the services in declaration order.
func (r *Registry) Services() []models.ServiceSpec {
	out := make([]models.ServiceSpec, len(r.services))
	for i, svc := range r.services {
		out[i] = svc.Clone()
	}
	return out
}

func (r *Registry) Get(name string) (models.ServiceSpec, error) {
	for _, svc := range r.services {
		if svc.Name == name {
			return svc.Clone(), nil
		}
	}
	return models.ServiceSpec{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
}

func (r *Registry) ByTier(tier models.Tier) []models.ServiceSpec {
	var out []models.ServiceSpec
	for _, svc := range r.services {
		if svc.Tier == tier {
			out = append(out, svc.Clone())
		}
	}
	return out
}
