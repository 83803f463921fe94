package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config carries every runtime setting. All values are env-driven with
// local-run defaults.
type Config struct {
	Port     string
	APIToken string
	Debug    bool

	// DatabaseURL enables the postgres event journal when set.
	DatabaseURL string

	AdminAddress    string
	TreasuryAddress string
	FeeSinkAddress  string

	DefaultInitialFeeBps int64
	DefaultBuyingFeeBps  int64

	// Currencies lists the settlement tokens registered at startup.
	Currencies []string

	OfferDomainName    string
	OfferDomainVersion string
	OfferOrigin        string
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("API_TOKEN", "dev-token")
	v.SetDefault("DEBUG", false)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_ADDRESS", "0x00000000000000000000000000000000000000a1")
	v.SetDefault("TREASURY_ADDRESS", "0x00000000000000000000000000000000000000b1")
	v.SetDefault("FEE_SINK_ADDRESS", "0x00000000000000000000000000000000000000c1")
	v.SetDefault("DEFAULT_INITIAL_FEE_BPS", 100)
	v.SetDefault("DEFAULT_BUYING_FEE_BPS", 200)
	v.SetDefault("CURRENCIES", "USDC")
	v.SetDefault("OFFER_DOMAIN_NAME", "fracta-marketplace")
	v.SetDefault("OFFER_DOMAIN_VERSION", "1")
	v.SetDefault("OFFER_ORIGIN", "fracta-main")

	return &Config{
		Port:                 v.GetString("PORT"),
		APIToken:             v.GetString("API_TOKEN"),
		Debug:                v.GetBool("DEBUG"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		AdminAddress:         v.GetString("ADMIN_ADDRESS"),
		TreasuryAddress:      v.GetString("TREASURY_ADDRESS"),
		FeeSinkAddress:       v.GetString("FEE_SINK_ADDRESS"),
		DefaultInitialFeeBps: v.GetInt64("DEFAULT_INITIAL_FEE_BPS"),
		DefaultBuyingFeeBps:  v.GetInt64("DEFAULT_BUYING_FEE_BPS"),
		Currencies:           splitList(v.GetString("CURRENCIES")),
		OfferDomainName:      v.GetString("OFFER_DOMAIN_NAME"),
		OfferDomainVersion:   v.GetString("OFFER_DOMAIN_VERSION"),
		OfferOrigin:          v.GetString("OFFER_ORIGIN"),
	}
}

// InitLogger installs the global zap logger.
func InitLogger(debug bool) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
