package types

import "github.com/surge-downloader/coursedl/internal/config"

// ConvertRuntimeConfig converts the app-level RuntimeConfig to the engine-level RuntimeConfig.
func ConvertRuntimeConfig(rc *config.RuntimeConfig) *RuntimeConfig {
	return &RuntimeConfig{
		BaseURL:                rc.BaseURL,
		UserAgent:              rc.UserAgent,
		ProxyURL:               rc.ProxyURL,
		SkipTLSVerification:    rc.SkipTLSVerification,
		MaxConcurrentDownloads: rc.MaxConcurrentDownloads,
		WorkerBufferSize:       rc.WorkerBufferSize,
		MaxFetchRetries:        rc.MaxFetchRetries,
		RetryBaseDelay:         rc.RetryBaseDelay,
		Resolution:             rc.Resolution,
	}
}
