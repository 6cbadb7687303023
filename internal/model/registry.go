package model

// OrganEndpoint is one entry of the orchestrator's static organ registry.
type OrganEndpoint struct {
	Key        Organ  `json:"-" mapstructure:"key" yaml:"key"`
	URL        string `json:"url" mapstructure:"url" yaml:"url"`
	Name       string `json:"name" mapstructure:"name" yaml:"name"`
	HealthPath string `json:"health_endpoint" mapstructure:"health_path" yaml:"health_path"`
}
