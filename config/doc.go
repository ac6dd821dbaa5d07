// Package config loads the client configuration.
//
// Values come from config.yml, then a .env file, then APICLIENT_* environment
// variables, later sources winning. Nested keys map to underscores:
// APICLIENT_HTTP_BASE_URL sets http.base_url.
//
//	cfg, err := config.Load("apictl")
//	if err != nil {
//	    return err
//	}
//
// Load applies defaults, then validates with struct tags
// (go-playground/validator) and each section's Validate method.
package config
