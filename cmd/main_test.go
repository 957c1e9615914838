// File: cmd/main_test.go
package cmd

import (
	"github.com/spf13/viper"

	"github.com/xkilldash9x/wayfarer-cli/internal/config"
	"github.com/xkilldash9x/wayfarer-cli/internal/observability"
)

// resetForTest clears the shared viper and logger state between tests.
func resetForTest() {
	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")
	cfgFile = ""
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
}
