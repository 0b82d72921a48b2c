package env

import (
	"github.com/mkazlausk/victron-scheduler/internal/config"
)

var Cfg *config.Config
