package config

const (
	defaultStagingDir         = "~/.local/share/herald/staging"
	defaultLogDir             = "~/.local/share/herald/logs"
	defaultBucketDir          = "~/.local/share/herald/bucket"
	defaultBucketRetention    = 14
	defaultTimezone           = "Asia/Kolkata"
	defaultCheckInterval      = 60
	defaultErrorRetryInterval = 30
	defaultPostedRetention    = 30
	defaultXAPIBaseURL        = "https://api.twitter.com/2"
	defaultXUploadBaseURL     = "https://upload.twitter.com/1.1"
	defaultGraphBaseURL       = "https://graph.facebook.com/v22.0"
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultSlots() []string {
	return []string{"09:00", "14:00", "19:00"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Schedule: Schedule{
			Slots:    defaultSlots(),
			Timezone: defaultTimezone,
		},
		Storage: Storage{
			BucketDir:     defaultBucketDir,
			RetentionDays: defaultBucketRetention,
		},
		XAPI: XAPI{
			APIBaseURL:    defaultXAPIBaseURL,
			UploadBaseURL: defaultXUploadBaseURL,
		},
		Instagram: Instagram{
			GraphBaseURL: defaultGraphBaseURL,
		},
		Workflow: Workflow{
			CheckInterval:       defaultCheckInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			PostedRetentionDays: defaultPostedRetention,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Published:      true,
			Failures:       true,
			PassSummary:    false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
