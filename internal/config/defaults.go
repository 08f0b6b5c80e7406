package config

const (
	defaultDataDir                   = "~/.local/share/dropindex"
	defaultDatabasePath              = "~/.local/share/dropindex/catalog.db"
	defaultFeedDir                   = "~/.local/share/dropindex/raw_data"
	defaultLogDir                    = "~/.local/share/dropindex/logs"
	defaultVisualThreshold           = 6
	defaultTextThreshold             = 80
	defaultMinNameLength             = 3
	defaultRepresentativesPerCluster = 3
	defaultMaintenanceBacklog        = 500
	defaultSaturationHigh            = 10
	defaultSaturationFull            = 30
	defaultMinWidth                  = 400
	defaultMinHeight                 = 400
	defaultOverwriteAreaRatio        = 2.0
	defaultCandidatesPerSource       = 6
	defaultConfidenceFloor           = 0.5
	defaultPriceWindow               = 50
	defaultStaleAfterHours           = 72
	defaultResultsPerSource          = 8
	defaultTimeoutSeconds            = 10
	defaultRequestsPerSecond         = 5
	defaultUserAgent                 = "Mozilla/5.0 (+dropindex)"
	defaultBatchSize                 = 200
	defaultWorkers                   = 4
	defaultGoogleBaseURL             = "https://www.googleapis.com/customsearch/v1"
	defaultBingBaseURL               = "https://api.bing.microsoft.com/v7.0/images/search"
	defaultBingMarket                = "es-CO"
	defaultMeliSite                  = "MCO"
	defaultMeliBaseURL               = "https://api.mercadolibre.com"
	defaultSerpAPIBaseURL            = "https://serpapi.com/search.json"
	defaultCountry                   = "co"
	defaultLanguage                  = "es"
	defaultCurrency                  = "COP"
	defaultNtfyTimeoutSeconds        = 10
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"

	minTimeoutSeconds = 3
	maxTimeoutSeconds = 15
)

var defaultTrustedDomains = []string{
	"falabella.com.co",
	"exito.com",
	"alkosto.com",
	"ktronix.com",
	"mercadolibre.com.co",
	"linio.com.co",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			DatabasePath: defaultDatabasePath,
			FeedDir:      defaultFeedDir,
			LogDir:       defaultLogDir,
		},
		Matching: Matching{
			VisualThreshold:           defaultVisualThreshold,
			TextThreshold:             defaultTextThreshold,
			MinNameLength:             defaultMinNameLength,
			RepresentativesPerCluster: defaultRepresentativesPerCluster,
			MaintenanceBacklog:        defaultMaintenanceBacklog,
			SaturationHigh:            defaultSaturationHigh,
			SaturationFull:            defaultSaturationFull,
		},
		Assets: Assets{
			MinWidth:            defaultMinWidth,
			MinHeight:           defaultMinHeight,
			OverwriteAreaRatio:  defaultOverwriteAreaRatio,
			TrustedDomains:      append([]string(nil), defaultTrustedDomains...),
			CandidatesPerSource: defaultCandidatesPerSource,
		},
		Prices: Prices{
			ConfidenceFloor:  defaultConfidenceFloor,
			Window:           defaultPriceWindow,
			StaleAfterHours:  defaultStaleAfterHours,
			ResultsPerSource: defaultResultsPerSource,
		},
		Network: Network{
			TimeoutSeconds:    defaultTimeoutSeconds,
			RequestsPerSecond: defaultRequestsPerSecond,
			UserAgent:         defaultUserAgent,
		},
		Workflow: Workflow{
			BatchSize: defaultBatchSize,
			Workers:   defaultWorkers,
		},
		Providers: Providers{
			GoogleBaseURL:  defaultGoogleBaseURL,
			BingBaseURL:    defaultBingBaseURL,
			BingMarket:     defaultBingMarket,
			MeliEnabled:    true,
			MeliSite:       defaultMeliSite,
			MeliBaseURL:    defaultMeliBaseURL,
			SerpAPIBaseURL: defaultSerpAPIBaseURL,
			Country:        defaultCountry,
			Language:       defaultLanguage,
			Currency:       defaultCurrency,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
