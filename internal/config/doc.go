// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// so the API token can stay out of the file: token: ${ITICK_API_KEY}.
package config
