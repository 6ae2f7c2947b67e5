package siigo

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "dataconta/pkg/errors"
)

const (
	DefaultBaseURL   = "https://api.siigo.com"
	DefaultPartnerID = "SandboxSiigoAPI"
	DefaultTimeout   = 30 * time.Second
	DefaultPageSize  = 100
	DefaultPageDelay = 100 * time.Millisecond
)

// Config holds Siigo API connection settings
type Config struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	Username  string        `mapstructure:"username" validate:"required"`
	AccessKey string        `mapstructure:"access_key" validate:"required"`
	PartnerID string        `mapstructure:"partner_id" validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PageSize  int           `mapstructure:"page_size" validate:"min=1,max=100"`
	PageDelay time.Duration `mapstructure:"page_delay" validate:"min=0"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		PartnerID: DefaultPartnerID,
		Timeout:   DefaultTimeout,
		PageSize:  DefaultPageSize,
		PageDelay: DefaultPageDelay,
	}
}

var validate = validator.New()

// Validate reports the first invalid setting as a configuration error
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "siigo", nil, err)
	}

	fe := fieldErrs[0]
	setting := "siigo." + settingName(fe.Field())
	if fe.Tag() == "required" {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, setting, nil, nil).
			WithSuggestion(envHint(fe.Field()))
	}
	return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting, fe.Value(), nil).
		WithDetail(fe.Error())
}

func settingName(field string) string {
	switch field {
	case "BaseURL":
		return "base_url"
	case "AccessKey":
		return "access_key"
	case "PartnerID":
		return "partner_id"
	case "PageSize":
		return "page_size"
	case "PageDelay":
		return "page_delay"
	default:
		return strings.ToLower(field)
	}
}

func envHint(field string) string {
	switch field {
	case "Username":
		return "set SIIGO_USER in the environment or .env file"
	case "AccessKey":
		return "set SIIGO_ACCESS_KEY in the environment or .env file"
	case "PartnerID":
		return "set PARTNER_ID in the environment or .env file"
	case "BaseURL":
		return "set SIIGO_API_URL in the environment or .env file"
	default:
		return "check the siigo section of the configuration"
	}
}
