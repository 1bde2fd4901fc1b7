package config

// EnvPrefix namespaces every environment variable read by envconfig.
const EnvPrefix = "GEORGY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "GEORGY_DB_DSN"
	EnvDBHost = "GEORGY_DB_HOST"
	EnvDBUser = "GEORGY_DB_USER"
	EnvDBName = "GEORGY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
