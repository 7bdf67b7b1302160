package config

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800

	DefaultRuntimeContextTokenLimit = 12000
	DefaultMinDiaryMessages         = 4
	DefaultWriteRetries             = 3

	DefaultAgentName        = "AI アシスタント"
	DefaultAgentPersonality = "優しくて聞き上手な性格で、相手の話に共感しながら適切なアドバイスをします。"
)
