// Package config provides configuration loading from environment variables.
package config

import (
	"regexp"
	"strings"
	"time"
)

// ServiceConfig holds configuration for the jobs service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	Namespace         string        // Namespace jobs are created in
	Signature         string        // Ownership label value identifying this manager
	DefinitionsPath   string        // Path to the job definitions manifest
	KubeconfigPath    string        // Optional; in-cluster config is used when empty
	LogTailLines      int           // Trailing log lines returned per container
	CleanupInterval   time.Duration // Time between cleanup sweeps, measured end-to-end
	RetentionPeriod   time.Duration // Minimum time a finished job is kept before deletion
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            loadAPIKey(),
		Namespace:         GetEnv("JOB_NAMESPACE", "default"),
		Signature:         GetEnv("JOB_SIGNATURE", "jobforge"),
		DefinitionsPath:   GetEnv("JOB_DEFINITIONS_PATH", "/etc/jobforge/definitions.yaml"),
		KubeconfigPath:    GetEnv("KUBECONFIG", ""),
		LogTailLines:      GetIntEnv("JOB_LOG_TAIL_LINES", 200),
		CleanupInterval:   GetDurationEnv("JOB_CLEANUP_INTERVAL", time.Minute),
		RetentionPeriod:   GetDurationEnv("JOB_RETENTION_PERIOD", time.Hour),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
	}
}

// loadAPIKey prefers a mounted secret file over a plain environment variable.
func loadAPIKey() string {
	if key := GetSecretFile(GetEnv("API_KEY_FILE", "")); key != "" {
		return key
	}
	return GetEnv("API_KEY", "")
}

// DefinitionPathOverrideVar returns the environment variable name that
// overrides the spec file path for a job definition. The definition name is
// snake-cased and upper-cased: "job-helloWorld" becomes
// "JOB_DEFINITION_PATH_JOB_HELLO_WORLD".
func DefinitionPathOverrideVar(definitionName string) string {
	return "JOB_DEFINITION_PATH_" + envVarName(definitionName)
}

var (
	camelBoundary = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerToUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

func envVarName(name string) string {
	s := camelBoundary.ReplaceAllString(name, "${1}_${2}")
	s = lowerToUpper.ReplaceAllString(s, "${1}_${2}")
	s = strings.NewReplacer("-", "_", ".", "_").Replace(s)
	return strings.ToUpper(s)
}
