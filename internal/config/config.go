package config

import (
	"os"

	"github.com/spf13/viper"
)

// MCP client transport types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig
	Server     ServerConfig
	Agent      AgentConfig
	Stream     StreamConfig
	Log        LogConfig
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// AgentConfig holds the conversation loop configuration. MaxTurns bounds the
// agent/tools cycle per invocation; an assistant that keeps requesting tools
// past it terminates the turn with an error.
type AgentConfig struct {
	SystemPrompt string `mapstructure:"system_prompt"`
	MaxTurns     int    `mapstructure:"max_turns"`
}

// StreamConfig holds the display pacing configuration.
type StreamConfig struct {
	TokenDelayMS int `mapstructure:"token_delay_ms"`
	SpaceDelayMS int `mapstructure:"space_delay_ms"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MCPServerConfig describes one MCP server whose tools are registered
// alongside the built-in ones. Env holds KEY=VALUE entries rather than a
// map: viper lowercases map keys on unmarshal, which would corrupt
// case-sensitive environment variable names.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     []string          `mapstructure:"env"`
}

// Load loads the configuration from config.yaml in the working directory,
// or from the file named by the CONFIG_PATH environment variable.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("agent.max_turns", 5)
	viper.SetDefault("stream.token_delay_ms", 30)
	viper.SetDefault("stream.space_delay_ms", 10)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
