package constants

const (
	ALLOWED_ORIGINS        = "/solarflow/ALLOWED_ORIGINS"
	DATABASE_RDS_PROXY_URL = "/solarflow/DATABASE_RDS_PROXY_URL"
	DATABASE_RDS_ENDPOINT  = "/solarflow/DATABASE_RDS_ENDPOINT"
	DATABASE_PORT          = "/solarflow/DATABASE_PORT"
	DATABASE_NAME          = "/solarflow/DATABASE_NAME"
	DATABASE_USERNAME      = "/solarflow/DATABASE_USERNAME"
	DATABASE_PASSWORD      = "/solarflow/DATABASE_PASSWORD"
	SSL_MODE               = "/solarflow/SSL_MODE"
	UPLOADS_BUCKET         = "/solarflow/UPLOADS_BUCKET"
	DRIVER_NAME            = "postgres"
)
