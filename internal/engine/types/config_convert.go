package types

import "github.com/fixitrock/rockdl/internal/config"

// ConvertRuntimeConfig converts the app-level RuntimeConfig to the engine-level RuntimeConfig.
func ConvertRuntimeConfig(rc *config.RuntimeConfig) *RuntimeConfig {
	if rc == nil {
		return &RuntimeConfig{}
	}
	return &RuntimeConfig{
		UserAgent:           rc.UserAgent,
		ProxyURL:            rc.ProxyURL,
		SkipTLSVerification: rc.SkipTLSVerification,
		WorkerBufferSize:    rc.WorkerBufferSize,
		ProgressInterval:    rc.ProgressInterval,
		ProbeTimeout:        rc.ProbeTimeout,
	}
}
