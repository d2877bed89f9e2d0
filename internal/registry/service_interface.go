package registry

// Service is the lifecycle contract of every bridge service.
type Service interface {
	Start() error
	Stop() error
}
