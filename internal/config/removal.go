package config

import (
	"fmt"
	"net/url"
)

type RemovalMode string

const (
	RemovalModeDemo     RemovalMode = "demo"
	RemovalModeRapidAPI RemovalMode = "rapidapi"
)

// ResultMode is passed through to the removal API as the "mode" query
// parameter.
type ResultMode string

const (
	ResultModeImageShadow ResultMode = "fg-image-shadow"
	ResultModeImage       ResultMode = "fg-image"
	ResultModeMask        ResultMode = "fg-mask"
)

const (
	demoEndpoint     = "https://demo.api4ai.cloud/img-bg-removal/v1/cars/results"
	rapidAPIEndpoint = "https://cars-image-background-removal.p.rapidapi.com/v1/results"
)

// RemovalProfile is one resolved entry of the removal endpoint table.
type RemovalProfile struct {
	Mode    RemovalMode
	URL     string
	Headers map[string]string
}

// Profile resolves the configured mode into an endpoint profile. Unknown
// modes and incomplete profiles are rejected.
func (c RemovalConfig) Profile() (RemovalProfile, error) {
	resultMode := ResultMode(c.ResultMode)
	switch resultMode {
	case ResultModeImageShadow, ResultModeImage, ResultModeMask:
	default:
		return RemovalProfile{}, fmt.Errorf("removal.result_mode %q must be one of fg-image-shadow, fg-image, fg-mask", c.ResultMode)
	}

	var profile RemovalProfile
	switch RemovalMode(c.Mode) {
	case RemovalModeDemo:
		appID := c.ClientAppID
		if appID == "" {
			appID = "sample"
		}
		profile = RemovalProfile{
			Mode:    RemovalModeDemo,
			URL:     demoEndpoint,
			Headers: map[string]string{"A4A-CLIENT-APP-ID": appID},
		}
	case RemovalModeRapidAPI:
		if c.APIKey == "" {
			return RemovalProfile{}, fmt.Errorf("removal.api_key is required for rapidapi mode")
		}
		profile = RemovalProfile{
			Mode:    RemovalModeRapidAPI,
			URL:     rapidAPIEndpoint,
			Headers: map[string]string{"X-RapidAPI-Key": c.APIKey},
		}
	default:
		return RemovalProfile{}, fmt.Errorf("removal.mode %q must be 'demo' or 'rapidapi'", c.Mode)
	}

	if c.Endpoint != "" {
		profile.URL = c.Endpoint
	}
	u, err := url.Parse(profile.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return RemovalProfile{}, fmt.Errorf("removal.endpoint %q is not an absolute url", profile.URL)
	}
	q := u.Query()
	q.Set("mode", string(resultMode))
	u.RawQuery = q.Encode()
	profile.URL = u.String()

	return profile, nil
}
