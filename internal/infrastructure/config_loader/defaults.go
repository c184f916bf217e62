package loader

const (
	defaultConfPath       = "configs"
	defaultServiceName    = "orders-service"
	defaultServiceVersion = "dev"
	defaultEnvironment    = "development"
)
