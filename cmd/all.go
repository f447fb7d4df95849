package cmd

import (
	_ "grid-keeper/cmd/logs"
	_ "grid-keeper/cmd/metrics"
	_ "grid-keeper/cmd/root"
	_ "grid-keeper/cmd/server"
	_ "grid-keeper/cmd/service"
)
