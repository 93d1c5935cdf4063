package backend

import (
	"fmt"

	"tablero/internal/config"
	"tablero/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,
		Target: storage.Target{
			SpreadsheetID: appConfig.GoogleSpreadsheetID,
			SheetName:     appConfig.GoogleSheetName,
			DataRange:     appConfig.GoogleDataRange,
		},

		ServiceAccountEmail: appConfig.GoogleServiceAccountEmail,
		PrivateKey:          appConfig.GooglePrivateKey,
		APIKey:              appConfig.GoogleAPIKey,
		RequestTimeout:      appConfig.RequestTimeout(),

		SeedFile: appConfig.MemorySeedFile,
	}, nil
}

// Validate validates the backend configuration. Missing Sheets credentials
// are not an error here: the backend starts unconfigured and reports them
// per request.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative: %v", c.RequestTimeout)
	}
	return nil
}
