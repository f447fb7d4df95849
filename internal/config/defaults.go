package config

import (
	"grid-keeper/internal/models"
)

const (
	elasticsearchVersion = "elasticsearch-6.1.1"
	rabbitmqArchive      = "rabbitmq-server-generic-unix-3.6.12"
	rabbitmqVersion      = "rabbitmq_server-3.6.12"
)

// DefaultServices is the registry used when the config file declares none:
// the search index and the message broker as infrastructure, and the grid
// applications checked out next to the keeper.
func DefaultServices() []models.ServiceSpec {
	return []models.ServiceSpec{
		{
			Name: "elasticsearch",
			Port: 9200,
			Tier: models.TierInfrastructure,
			Install: &models.InstallSpec{
				ArtifactURL:   "https://artifacts.elastic.co/downloads/elasticsearch/" + elasticsearchVersion + ".tar.gz",
				ArchiveFormat: models.ArchiveTarGz,
				Version:       elasticsearchVersion,
				InstallDir:    "elasticsearch",
			},
			Start:       models.Command{Command: "./elasticsearch", WorkDir: "bin"},
			PrepareDirs: []string{"data"},
			LogFile:     "{{.InstallDir}}/log",
		},
		{
			Name: "rabbitmq",
			Port: 5672,
			Tier: models.TierInfrastructure,
			Install: &models.InstallSpec{
				ArtifactURL:   "https://github.com/rabbitmq/rabbitmq-server/releases/download/rabbitmq_v3_6_12/" + rabbitmqArchive + ".tar.xz",
				ArchiveFormat: models.ArchiveTarXz,
				Version:       rabbitmqVersion,
				InstallDir:    "rabbitmq",
			},
			Start: models.Command{Command: "./rabbitmq-server", WorkDir: "sbin"},
			PostStartHooks: []models.Command{
				{Command: "./rabbitmq-plugins", Args: []string{"enable", "rabbitmq_management"}},
				{Command: "./rabbitmqctl", Args: []string{"add_user", "anonymous", "yacy"}},
				{Command: "./rabbitmqctl", Args: []string{"set_user_tags", "anonymous", "administrator"}},
				{Command: "./rabbitmqctl", Args: []string{"set_permissions", "-p", "/", "anonymous", ".*", ".*", ".*"}},
			},
		},
		gridApp("mcp", 8100),
		gridApp("loader", 8200),
		gridApp("crawler", 8300),
		gridApp("parser", 8500),
	}
}

func gridApp(name string, port int) models.ServiceSpec {
	return models.ServiceSpec{
		Name: "yacy_grid_" + name,
		Port: port,
		Tier: models.TierApplication,
		Start: models.Command{
			Command: "./gradlew",
			Args:    []string{"run"},
			WorkDir: "../yacy_grid_" + name,
		},
	}
}
